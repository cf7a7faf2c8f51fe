// Command acorn-server is the main server process that answers all
// client requests and sequences new changes to the accumulator.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/acornlabs/acorn/db"
	"github.com/gorilla/mux"
)

var (
	configFile = flag.String("config", "", "Location of config file.")
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.LUTC)
	flag.Parse()

	// Load config from disk.
	if *configFile == "" {
		log.Fatalf("No config file provided, see --help.")
	}
	config, err := ReadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	// Restore the accumulator and start the modifier thread.
	store, err := db.NewLDBSnapshotStore(config.DatabaseFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	state, err := LoadState(store)
	if err != nil {
		log.Fatalf("Failed to initialize accumulator: %v", err)
	}
	log.Printf("Accumulator restored with %v leaves.", state.Leaves())

	ch := make(chan ModifyRequest)
	go modifier(state, ch)

	if config.MetricsAddr != "" {
		go metrics(config.MetricsAddr)
	}

	// Setup handler for the API server.
	h := &Handler{state: state, ch: ch}
	r := mux.NewRouter()
	r.HandleFunc("/v1/state", h.State).Methods("GET")
	r.HandleFunc("/v1/modify", h.Modify).Methods("POST")
	r.HandleFunc("/v1/prove", h.Prove).Methods("POST")
	r.HandleFunc("/v1/prove/batch", h.BatchProve).Methods("POST")
	r.HandleFunc("/v1/verify", h.Verify).Methods("POST")

	// Setup the API server.
	srv := &http.Server{
		Addr:      config.ServerAddr,
		Handler:   r,
		TLSConfig: config.tlsConfig,

		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	log.Println("Starting API server.")
	if config.TLSConfig == nil {
		log.Fatal(srv.ListenAndServe())
	} else {
		log.Fatal(srv.ListenAndServeTLS("", ""))
	}
}
