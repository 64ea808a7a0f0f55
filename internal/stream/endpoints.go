package stream

import (
	"fmt"

	"swapScope/internal/chain"
)

// endpointRing tracks the active endpoint and how many rotations happened in
// the current cycle. It is owned by the stream loop.
type endpointRing struct {
	endpoints []string
	current   int
	rotations int
}

func newEndpointRing(endpoints []string) *endpointRing {
	return &endpointRing{endpoints: endpoints}
}

func (r *endpointRing) Current() string {
	return r.endpoints[r.current]
}

func (r *endpointRing) Len() int {
	return len(r.endpoints)
}

// Rotate advances to the next endpoint. Once every endpoint has been rotated
// away from within one cycle it returns ErrFatalExhaustion.
func (r *endpointRing) Rotate() (string, error) {
	r.rotations++
	if r.rotations >= len(r.endpoints) {
		return "", fmt.Errorf("%d endpoints failed within one cycle: %w", len(r.endpoints), chain.ErrFatalExhaustion)
	}
	r.current = (r.current + 1) % len(r.endpoints)
	return r.endpoints[r.current], nil
}

// ResetCycle is called once a session proves healthy.
func (r *endpointRing) ResetCycle() {
	r.rotations = 0
}
