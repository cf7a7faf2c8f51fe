package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/acornlabs/acorn/accumulator"
)

type Handler struct {
	state *State
	ch    chan ModifyRequest
}

// additionJSON accepts either a bare hash string, in which case the
// leaf is remembered, or the richer {"hash": h, "remember": b} form.
type additionJSON struct {
	Hash     accumulator.Hash
	Remember bool
}

func (a *additionJSON) UnmarshalJSON(raw []byte) error {
	if len(raw) > 0 && raw[0] == '"' {
		a.Remember = true
		return json.Unmarshal(raw, &a.Hash)
	}
	var obj struct {
		Hash     accumulator.Hash `json:"hash"`
		Remember *bool            `json:"remember"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: %v", accumulator.ErrMalformedInput, err)
	}
	a.Hash = obj.Hash
	a.Remember = obj.Remember == nil || *obj.Remember
	return nil
}

type ModifyBody struct {
	Proof     accumulator.Proof  `json:"proof"`
	Additions []additionJSON     `json:"additions"`
	Deletions []accumulator.Hash `json:"deletions"`
}

type ProveBody struct {
	Hash accumulator.Hash `json:"hash"`
}

type BatchProveBody struct {
	Hashes []accumulator.Hash `json:"hashes"`
}

// BatchProofResponse returns the proof along with the target leaf
// hashes reordered to match the proof's ascending-position targets,
// which is the order Verify expects them in.
type BatchProofResponse struct {
	Proof  accumulator.Proof  `json:"proof"`
	Hashes []accumulator.Hash `json:"hashes"`
}

type VerifyBody struct {
	Proof  accumulator.Proof  `json:"proof"`
	Hashes []accumulator.Hash `json:"hashes"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

func (h *Handler) State(rw http.ResponseWriter, req *http.Request) {
	raw, err := h.state.Export()
	if err != nil {
		writeError(rw, req, err)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(raw)
}

func (h *Handler) Modify(rw http.ResponseWriter, req *http.Request) {
	var body ModifyBody
	if err := decodeBody(req, &body); err != nil {
		writeError(rw, req, err)
		return
	}

	additions := make([]accumulator.Addition, len(body.Additions))
	for i, add := range body.Additions {
		additions[i] = accumulator.Addition{Hash: add.Hash, Remember: add.Remember}
	}

	respCh := make(chan ModifyResponse, 1)
	h.ch <- ModifyRequest{
		Additions: additions,
		Deletions: body.Deletions,
		Proof:     body.Proof,
		Resp:      respCh,
	}
	resp := <-respCh
	if resp.Err != nil {
		writeError(rw, req, resp.Err)
		return
	}
	writeJSON(rw, req, struct {
		Roots  []accumulator.Hash `json:"roots"`
		Leaves uint64             `json:"leaves"`
	}{resp.Roots, resp.Leaves})
}

func (h *Handler) Prove(rw http.ResponseWriter, req *http.Request) {
	var body ProveBody
	if err := decodeBody(req, &body); err != nil {
		writeError(rw, req, err)
		return
	}
	proof, err := h.state.ProveSingle(body.Hash)
	if err != nil {
		writeError(rw, req, err)
		return
	}
	writeJSON(rw, req, proof)
}

func (h *Handler) BatchProve(rw http.ResponseWriter, req *http.Request) {
	var body BatchProveBody
	if err := decodeBody(req, &body); err != nil {
		writeError(rw, req, err)
		return
	}
	proof, hashes, err := h.state.BatchProofAligned(body.Hashes)
	if err != nil {
		writeError(rw, req, err)
		return
	}
	writeJSON(rw, req, BatchProofResponse{Proof: proof, Hashes: hashes})
}

func (h *Handler) Verify(rw http.ResponseWriter, req *http.Request) {
	var body VerifyBody
	if err := decodeBody(req, &body); err != nil {
		writeError(rw, req, err)
		return
	}
	valid, err := h.state.Verify(body.Proof, body.Hashes)
	if err != nil {
		writeError(rw, req, err)
		return
	}
	writeJSON(rw, req, VerifyResponse{Valid: valid})
}

func decodeBody(req *http.Request, out any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, accumulator.ErrMalformedInput) {
			return err
		}
		return fmt.Errorf("%w: %v", accumulator.ErrMalformedInput, err)
	}
	return nil
}

func writeJSON(rw http.ResponseWriter, req *http.Request, out any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(out); err != nil {
		log.Println(err)
	}
	requestCtr.WithLabelValues(req.URL.Path, "200").Inc()
}

func writeError(rw http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, accumulator.ErrMalformedInput),
		errors.Is(err, accumulator.ErrShapeInconsistency):
		status = http.StatusBadRequest
	case errors.Is(err, accumulator.ErrTargetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, accumulator.ErrProofMismatch):
		status = http.StatusConflict
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if encErr := json.NewEncoder(rw).Encode(struct {
		Error string `json:"error"`
	}{err.Error()}); encErr != nil {
		log.Println(encErr)
	}
	requestCtr.WithLabelValues(req.URL.Path, fmt.Sprint(status)).Inc()
}
