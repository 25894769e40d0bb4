package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/enclavote/enclavote/gateway"
)

// GatewayService represents a service that runs the background computation
// worker draining the request queue towards the MPC cluster.
type GatewayService struct {
	gw     *gateway.Gateway
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewGateway creates a new GatewayService instance over an existing gateway.
func NewGateway(gw *gateway.Gateway) *GatewayService {
	return &GatewayService{gw: gw}
}

// Start begins the computation worker. It returns an error if the service is
// already running.
func (gs *GatewayService) Start(ctx context.Context) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, gs.cancel = context.WithCancel(ctx)
	if err := gs.gw.Start(ctx); err != nil {
		gs.cancel()
		gs.cancel = nil
		return fmt.Errorf("failed to start computation worker: %w", err)
	}
	return nil
}

// Stop halts the computation worker. Queued requests stay queued.
func (gs *GatewayService) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.cancel != nil {
		gs.cancel()
		gs.cancel = nil
	}
	gs.gw.Stop()
}
