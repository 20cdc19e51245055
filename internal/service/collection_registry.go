package service

import (
	"context"
	"fmt"
	"sync"
)

// SurfaceRegistry is the in-process bridge between a suspended gateway
// collection and the HTTP callback that settles it. Collect registers
// the pending transaction and blocks; the API layer delivers exactly
// one terminal outcome per gateway order id.
type SurfaceRegistry struct {
	mu      sync.Mutex
	pending map[string]*pendingCollection
}

type pendingCollection struct {
	req *CollectRequest
	ch  chan *CollectResponse
}

// NewSurfaceRegistry creates an empty registry.
func NewSurfaceRegistry() *SurfaceRegistry {
	return &SurfaceRegistry{pending: make(map[string]*pendingCollection)}
}

// Collect suspends until the surface settles or the context ends. A
// context cancellation while suspended is a user-side abandonment and
// is reported as a dismissal.
func (r *SurfaceRegistry) Collect(ctx context.Context, req *CollectRequest) (*CollectResponse, error) {
	ch := make(chan *CollectResponse, 1)

	r.mu.Lock()
	if _, exists := r.pending[req.GatewayOrderID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("collection already pending for %s", req.GatewayOrderID)
	}
	r.pending[req.GatewayOrderID] = &pendingCollection{req: req, ch: ch}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, req.GatewayOrderID)
		r.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return &CollectResponse{Outcome: CollectOutcomeDismissed}, nil
	case resp := <-ch:
		return resp, nil
	}
}

// Pending returns the collect request waiting on a gateway order id,
// so the client surface can fetch what it needs to open the hosted UI.
func (r *SurfaceRegistry) Pending(gatewayOrderID string) (*CollectRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[gatewayOrderID]
	if !ok {
		return nil, false
	}
	return p.req, true
}

// Deliver settles a pending collection. A second delivery for the same
// gateway order id, or a delivery for an unknown one, is an error.
func (r *SurfaceRegistry) Deliver(gatewayOrderID string, resp *CollectResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[gatewayOrderID]
	if !ok {
		return fmt.Errorf("no pending collection for %s", gatewayOrderID)
	}

	select {
	case p.ch <- resp:
	default:
		return fmt.Errorf("collection for %s already settled", gatewayOrderID)
	}
	delete(r.pending, gatewayOrderID)
	return nil
}
