package gateway

import (
	"context"
	"fmt"
	"time"

	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/storage"
)

// Start launches the background worker that drains the computation queue.
// A single worker executes requests sequentially, standing in for the
// cluster's own serialization of computations over the same record.
func (g *Gateway) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if g.executor == nil {
		return ErrClusterNotSet
	}
	ctx, g.cancel = context.WithCancel(ctx)
	go g.run(ctx)
	return nil
}

// Stop cancels the worker. In-flight executions finish; queued requests
// remain queued. It is safe to call Stop multiple times.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
}

func (g *Gateway) run(ctx context.Context) {
	const tickInterval = 100 * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Infow("computation worker started")
	for {
		select {
		case <-ctx.Done():
			log.Infow("computation worker stopped")
			return
		default:
		}

		req, key, err := g.stg.NextComputation()
		if err != nil {
			if err != storage.ErrNoMoreElements {
				log.Errorw(err, "failed to get next computation")
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				log.Infow("computation worker stopped")
				return
			}
			continue
		}

		g.process(ctx, req, key)
	}
}

// process executes one request and delivers its result. The request is
// consumed whatever the outcome: results are applied at most once, and a
// failed delivery is logged rather than retried, mirroring the platform's
// single callback invocation.
func (g *Gateway) process(ctx context.Context, req *storage.ComputationRequest, key []byte) {
	startTime := time.Now()

	res, err := g.executor.Execute(ctx, req)
	if err != nil {
		// The cluster never called back. Leave the request queued so an
		// operator can inspect it; the poll stays in its last applied
		// generation.
		log.Errorw(err, fmt.Sprintf("cluster execution failed for computation %d", req.Offset))
		return
	}

	if err := g.verifyResult(req, res); err != nil {
		log.Warnw("discarding computation result",
			"offset", req.Offset,
			"kind", string(req.Kind),
			"error", err.Error(),
		)
		return
	}

	if h := g.handler(req.Kind); h != nil {
		if err := h(req, res); err != nil {
			log.Warnw("computation callback failed",
				"offset", req.Offset,
				"kind", string(req.Kind),
				"error", err.Error(),
			)
		}
	} else {
		log.Warnw("no handler registered for computation", "kind", string(req.Kind))
	}

	if err := g.stg.MarkComputationDone(key); err != nil {
		log.Warnw("failed to mark computation done",
			"offset", req.Offset,
			"error", err.Error(),
		)
		return
	}

	log.Debugw("computation processed",
		"offset", req.Offset,
		"kind", string(req.Kind),
		"aborted", res.Aborted,
		"duration", time.Since(startTime).String(),
	)
}
