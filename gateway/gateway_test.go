package gateway

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/enclavote/enclavote/crypto/ethereum"
	"github.com/enclavote/enclavote/storage"
	"github.com/enclavote/enclavote/types"
)

// stubExecutor echoes every request back as a successful result, signed with
// its own key.
type stubExecutor struct {
	signer *ethereum.SignKeys
}

func newStubExecutor(c *qt.C) *stubExecutor {
	signer := ethereum.NewSignKeys()
	c.Assert(signer.Generate(), qt.IsNil)
	return &stubExecutor{signer: signer}
}

func (s *stubExecutor) Execute(_ context.Context, req *storage.ComputationRequest) (*storage.ComputationResult, error) {
	res := &storage.ComputationResult{
		Offset: req.Offset,
		Kind:   req.Kind,
		Output: []byte("payload"),
	}
	att, err := s.signer.SignEthereum(ResultDigest(res))
	if err != nil {
		return nil, err
	}
	res.Attestation = att
	return res, nil
}

func testRequest(offset uint64) *storage.ComputationRequest {
	var nonce [types.TallyNonceSize]byte
	copy(nonce[:], []byte("0123456789abcdef"))
	return &storage.ComputationRequest{
		Offset: offset,
		Kind:   storage.KindInitVoteStats,
		Args:   []storage.Argument{storage.PlaintextU128Arg(nonce)},
	}
}

func TestSubmitWithoutCluster(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	gw := New(stg, nil, Config{})

	c.Assert(gw.Submit(testRequest(1)), qt.Equals, ErrClusterNotSet)
	c.Assert(gw.Start(context.Background()), qt.Equals, ErrClusterNotSet)
}

func TestWorkerDeliversResults(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	executor := newStubExecutor(c)
	gw := New(stg, executor, Config{
		ClusterAddress:     executor.signer.Address(),
		VerifyAttestations: true,
	})

	delivered := make(chan *storage.ComputationResult, 1)
	gw.RegisterHandler(storage.KindInitVoteStats, func(req *storage.ComputationRequest, res *storage.ComputationResult) error {
		delivered <- res
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Assert(gw.Start(ctx), qt.IsNil)
	defer gw.Stop()

	c.Assert(gw.Submit(testRequest(42)), qt.IsNil)

	select {
	case res := <-delivered:
		c.Assert(res.Offset, qt.Equals, uint64(42))
		c.Assert(res.Aborted, qt.IsFalse)
	case <-time.After(5 * time.Second):
		c.Fatal("result was not delivered")
	}

	// The request is consumed exactly once.
	deadline := time.Now().Add(5 * time.Second)
	for stg.CountPendingComputations() != 0 {
		if time.Now().After(deadline) {
			c.Fatal("request not consumed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case <-delivered:
		c.Fatal("result delivered twice")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWorkerRejectsForgedAttestations(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	executor := newStubExecutor(c)

	// Register a different key as the cluster identity.
	other := ethereum.NewSignKeys()
	c.Assert(other.Generate(), qt.IsNil)
	gw := New(stg, executor, Config{
		ClusterAddress:     other.Address(),
		VerifyAttestations: true,
	})

	delivered := make(chan *storage.ComputationResult, 1)
	gw.RegisterHandler(storage.KindInitVoteStats, func(req *storage.ComputationRequest, res *storage.ComputationResult) error {
		delivered <- res
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Assert(gw.Start(ctx), qt.IsNil)
	defer gw.Stop()

	c.Assert(gw.Submit(testRequest(7)), qt.IsNil)

	select {
	case <-delivered:
		c.Fatal("forged result must not reach the handler")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestVerifyResultBindsRequest(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	executor := newStubExecutor(c)
	gw := New(stg, executor, Config{
		ClusterAddress:     executor.signer.Address(),
		VerifyAttestations: true,
	})

	req := testRequest(9)
	res, err := executor.Execute(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(gw.verifyResult(req, res), qt.IsNil)

	// A result replayed against another request is rejected before any
	// signature check.
	c.Assert(gw.verifyResult(testRequest(10), res), qt.ErrorIs, ErrBadAttestation)

	// Tampering with the payload invalidates the attestation.
	res.Output = []byte("tampered")
	c.Assert(gw.verifyResult(req, res), qt.ErrorIs, ErrBadAttestation)
}

func TestResultDigestCoversAbortMarker(t *testing.T) {
	c := qt.New(t)

	res := &storage.ComputationResult{Offset: 1, Kind: storage.KindVote, Output: []byte("x")}
	plain := ResultDigest(res)
	res.Aborted = true
	aborted := ResultDigest(res)
	c.Assert(plain, qt.Not(qt.DeepEquals), aborted)
}
