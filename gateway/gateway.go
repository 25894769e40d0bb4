// Package gateway implements the request/response protocol between the poll
// controller and the MPC cluster. Submissions are synchronous: a typed
// argument list is validated and queued under a caller-chosen correlation
// handle. Execution is asynchronous: a background worker hands queued
// requests to the cluster executor and delivers each result to the handler
// registered for its computation kind, exactly once, after verifying the
// cluster's attestation over the payload.
package gateway

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/enclavote/enclavote/crypto/ethereum"
	"github.com/enclavote/enclavote/storage"
)

var (
	// ErrClusterNotSet is returned when submitting without a configured
	// cluster executor. The environment is not provisioned, the request is
	// never queued.
	ErrClusterNotSet = errors.New("mpc cluster not set")
	// ErrBadAttestation is returned when a result's attestation does not
	// bind the payload to the request and the registered cluster identity.
	ErrBadAttestation = errors.New("invalid result attestation")
)

// Executor runs a computation request on the MPC cluster and returns its
// result. Implementations resolve account-reference arguments through the
// record store and serialize computations that touch the same record; the
// gateway relies on that guarantee instead of re-implementing it.
type Executor interface {
	Execute(ctx context.Context, req *storage.ComputationRequest) (*storage.ComputationResult, error)
}

// ResultHandler consumes the result of one computation. It is invoked at
// most once per queued request, for success and abort alike.
type ResultHandler func(req *storage.ComputationRequest, res *storage.ComputationResult) error

// Config configures a Gateway.
type Config struct {
	// ClusterAddress is the registered signing identity of the cluster.
	ClusterAddress common.Address
	// VerifyAttestations selects the signed verification tier. Disabling it
	// reverts to the unauthenticated tier, which trusts whoever invokes the
	// callback path; only tests should do that.
	VerifyAttestations bool
}

// Gateway queues computation requests and dispatches their results.
type Gateway struct {
	stg      *storage.Storage
	executor Executor
	cfg      Config

	handlersLock sync.RWMutex
	handlers     map[storage.ComputationKind]ResultHandler

	cancel context.CancelFunc
}

// New creates a Gateway on top of the given storage and cluster executor.
func New(stg *storage.Storage, executor Executor, cfg Config) *Gateway {
	return &Gateway{
		stg:      stg,
		executor: executor,
		cfg:      cfg,
		handlers: make(map[storage.ComputationKind]ResultHandler),
	}
}

// RegisterHandler installs the result handler for a computation kind.
// Registering twice for the same kind replaces the previous handler.
func (g *Gateway) RegisterHandler(kind storage.ComputationKind, h ResultHandler) {
	g.handlersLock.Lock()
	defer g.handlersLock.Unlock()
	g.handlers[kind] = h
}

// Submit validates and enqueues a computation request. The offset is the
// caller's correlation handle; the gateway performs no deduplication, so
// callers must supply a fresh offset per submission. Submit returns as soon
// as the request is durably queued.
func (g *Gateway) Submit(req *storage.ComputationRequest) error {
	if g.executor == nil {
		return ErrClusterNotSet
	}
	if req.Kind == "" {
		return fmt.Errorf("missing computation kind")
	}
	return g.stg.PushComputation(req)
}

// handler returns the registered handler for kind, or nil.
func (g *Gateway) handler(kind storage.ComputationKind) ResultHandler {
	g.handlersLock.RLock()
	defer g.handlersLock.RUnlock()
	return g.handlers[kind]
}

// ResultDigest computes the digest the cluster attests: the correlation
// handle, the computation definition offset, the abort marker and the
// payload, bound together under keccak256.
func ResultDigest(res *storage.ComputationResult) []byte {
	buf := make([]byte, 0, 13+len(res.Output))
	buf = binary.LittleEndian.AppendUint64(buf, res.Offset)
	buf = binary.LittleEndian.AppendUint32(buf, storage.CompDefOffset(res.Kind))
	if res.Aborted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, res.Output...)
	return ethereum.HashRaw(buf)
}

// verifyResult checks the attestation of a result against the registered
// cluster identity and the originating request.
func (g *Gateway) verifyResult(req *storage.ComputationRequest, res *storage.ComputationResult) error {
	if res.Offset != req.Offset || res.Kind != req.Kind {
		return fmt.Errorf("%w: result does not match request", ErrBadAttestation)
	}
	if !g.cfg.VerifyAttestations {
		return nil
	}
	signer, err := ethereum.AddrFromSignature(ResultDigest(res), res.Attestation)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadAttestation, err)
	}
	if signer != g.cfg.ClusterAddress {
		return fmt.Errorf("%w: signed by %s, expected %s", ErrBadAttestation, signer, g.cfg.ClusterAddress)
	}
	return nil
}
