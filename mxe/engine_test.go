package mxe

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/enclavote/enclavote/crypto/ethereum"
	cryptomxe "github.com/enclavote/enclavote/crypto/mxe"
	"github.com/enclavote/enclavote/gateway"
	"github.com/enclavote/enclavote/storage"
	"github.com/enclavote/enclavote/types"
	"github.com/enclavote/enclavote/util"
)

// execute runs one request and decodes the tally payload it returns.
func executeTally(c *qt.C, e *Engine, req *storage.ComputationRequest) types.EncryptedTally {
	res, err := e.Execute(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Aborted, qt.IsFalse)
	out := storage.TallyOutput{}
	c.Assert(cbor.Unmarshal(res.Output, &out), qt.IsNil)
	tally, ok := out.Tally()
	c.Assert(ok, qt.IsTrue)
	return tally
}

// castVote encrypts a choice against the engine's key and executes the vote
// computation over the poll's current ciphertext generation.
func castVote(c *qt.C, e *Engine, stg *storage.Storage, pid *types.PollID, choice uint8) {
	p, err := stg.Poll(pid)
	c.Assert(err, qt.IsNil)

	voterPriv, voterPub, err := cryptomxe.GenerateX25519()
	c.Assert(err, qt.IsNil)
	secret, err := cryptomxe.SharedSecret(voterPriv, e.EncryptionPubKey())
	c.Assert(err, qt.IsNil)
	voteNonce := util.Random16()
	ct := cryptomxe.EncryptVote(secret, voteNonce, choice)

	pollKey := pid.Marshal()
	tally := executeTally(c, e, &storage.ComputationRequest{
		Offset: util.RandomU64(),
		Kind:   storage.KindVote,
		Args: []storage.Argument{
			storage.X25519PubkeyArg(voterPub),
			storage.PlaintextU128Arg(voteNonce),
			storage.EncryptedU8Arg(ct),
			storage.PlaintextU128Arg(p.Tally.Nonce),
			storage.AccountRefArg(pollKey, types.TallyOffset, types.TallyLength),
		},
	})
	c.Assert(stg.SetTally(pid, tally), qt.IsNil)
}

func TestEngineLifecycle(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	engine, err := New(stg)
	c.Assert(err, qt.IsNil)

	p := &types.Poll{ID: 1, Question: "favorite option?"}
	initNonce := util.Random16()
	p.Tally = executeTally(c, engine, &storage.ComputationRequest{
		Offset: 1,
		Kind:   storage.KindInitVoteStats,
		Args:   []storage.Argument{storage.PlaintextU128Arg(initNonce)},
	})
	c.Assert(p.Tally.Nonce, qt.Equals, initNonce)
	c.Assert(stg.CreatePoll(p), qt.IsNil)
	pid := p.PollID()

	// 2:1 for option two.
	castVote(c, engine, stg, pid, 2)
	castVote(c, engine, stg, pid, 2)
	castVote(c, engine, stg, pid, 0)

	p, err = stg.Poll(pid)
	c.Assert(err, qt.IsNil)
	res, err := engine.Execute(context.Background(), &storage.ComputationRequest{
		Offset: util.RandomU64(),
		Kind:   storage.KindRevealResult,
		Args: []storage.Argument{
			storage.PlaintextU128Arg(p.Tally.Nonce),
			storage.AccountRefArg(pid.Marshal(), types.TallyOffset, types.TallyLength),
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Aborted, qt.IsFalse)
	out := storage.RevealOutput{}
	c.Assert(cbor.Unmarshal(res.Output, &out), qt.IsNil)
	c.Assert(out.Winner, qt.Equals, uint8(2))
}

func TestEngineAbortsBadInputs(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	engine, err := New(stg)
	c.Assert(err, qt.IsNil)

	p := &types.Poll{ID: 2, Question: "q"}
	initNonce := util.Random16()
	p.Tally = executeTally(c, engine, &storage.ComputationRequest{
		Offset: 1,
		Kind:   storage.KindInitVoteStats,
		Args:   []storage.Argument{storage.PlaintextU128Arg(initNonce)},
	})
	c.Assert(stg.CreatePoll(p), qt.IsNil)
	pid := p.PollID()
	pollKey := pid.Marshal()

	voterPriv, voterPub, err := cryptomxe.GenerateX25519()
	c.Assert(err, qt.IsNil)
	secret, err := cryptomxe.SharedSecret(voterPriv, engine.EncryptionPubKey())
	c.Assert(err, qt.IsNil)
	voteNonce := util.Random16()

	// An out-of-range choice survives encryption but aborts in the cluster.
	ct := cryptomxe.EncryptVote(secret, voteNonce, 3)
	res, err := engine.Execute(context.Background(), &storage.ComputationRequest{
		Offset: 10,
		Kind:   storage.KindVote,
		Args: []storage.Argument{
			storage.X25519PubkeyArg(voterPub),
			storage.PlaintextU128Arg(voteNonce),
			storage.EncryptedU8Arg(ct),
			storage.PlaintextU128Arg(initNonce),
			storage.AccountRefArg(pollKey, types.TallyOffset, types.TallyLength),
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Aborted, qt.IsTrue)
	c.Assert(res.Output, qt.HasLen, 0)

	// A stale tally nonce makes the counters undecryptable.
	ct = cryptomxe.EncryptVote(secret, voteNonce, 1)
	staleNonce := util.Random16()
	res, err = engine.Execute(context.Background(), &storage.ComputationRequest{
		Offset: 11,
		Kind:   storage.KindVote,
		Args: []storage.Argument{
			storage.X25519PubkeyArg(voterPub),
			storage.PlaintextU128Arg(voteNonce),
			storage.EncryptedU8Arg(ct),
			storage.PlaintextU128Arg(staleNonce),
			storage.AccountRefArg(pollKey, types.TallyOffset, types.TallyLength),
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Aborted, qt.IsTrue)

	// Unknown computation kinds abort too.
	res, err = engine.Execute(context.Background(), &storage.ComputationRequest{
		Offset: 12,
		Kind:   storage.ComputationKind("mystery"),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Aborted, qt.IsTrue)
}

func TestEngineAttestsResults(t *testing.T) {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	engine, err := New(stg)
	c.Assert(err, qt.IsNil)

	nonce := util.Random16()
	res, err := engine.Execute(context.Background(), &storage.ComputationRequest{
		Offset: 7,
		Kind:   storage.KindInitVoteStats,
		Args:   []storage.Argument{storage.PlaintextU128Arg(nonce)},
	})
	c.Assert(err, qt.IsNil)

	signer, err := ethereum.AddrFromSignature(gateway.ResultDigest(res), res.Attestation)
	c.Assert(err, qt.IsNil)
	c.Assert(signer, qt.Equals, engine.Address())
}
