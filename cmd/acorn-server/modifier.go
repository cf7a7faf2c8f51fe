package main

import (
	"fmt"
	"time"

	"github.com/acornlabs/acorn/accumulator"
)

type ModifyRequest struct {
	Additions []accumulator.Addition
	Deletions []accumulator.Hash
	Proof     accumulator.Proof
	Resp      chan<- ModifyResponse
}

type ModifyResponse struct {
	Roots  []accumulator.Hash
	Leaves uint64
	Err    error
}

// modifier is a goroutine that receives update requests over `ch`,
// applies them to the accumulator one at a time, and responds with the
// new roots. Funneling every mutation through one goroutine keeps the
// update stream serialized.
func modifier(state *State, ch chan ModifyRequest) {
	for {
		req := <-ch

		start := time.Now()
		err := state.Modify(req.Additions, req.Deletions, req.Proof)
		modifyOps.WithLabelValues(fmt.Sprint(err == nil)).Inc()
		modifyDur.Observe(float64(time.Since(start).Microseconds()))

		state.mu.RLock()
		resp := ModifyResponse{
			Roots:  state.pol.Roots(),
			Leaves: state.pol.Leaves(),
			Err:    err,
		}
		state.mu.RUnlock()

		select {
		case req.Resp <- resp:
		default:
		}
	}
}
