package poll

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db/metadb"

	cryptomxe "github.com/enclavote/enclavote/crypto/mxe"
	"github.com/enclavote/enclavote/gateway"
	"github.com/enclavote/enclavote/mxe"
	"github.com/enclavote/enclavote/storage"
	"github.com/enclavote/enclavote/types"
	"github.com/enclavote/enclavote/util"
)

const testTimeout = 10 * time.Second

// testEnv wires storage, an in-process cluster engine, the gateway worker
// and the controller together.
type testEnv struct {
	stg    *storage.Storage
	engine *mxe.Engine
	ctrl   *Controller
}

func newTestEnv(t *testing.T) *testEnv {
	c := qt.New(t)
	stg := storage.New(metadb.NewTest(t))
	engine, err := mxe.New(stg)
	c.Assert(err, qt.IsNil)
	gw := gateway.New(stg, engine, gateway.Config{
		ClusterAddress:     engine.Address(),
		VerifyAttestations: true,
	})
	ctrl := New(stg, gw)

	ctx, cancel := context.WithCancel(context.Background())
	c.Assert(gw.Start(ctx), qt.IsNil)
	t.Cleanup(func() {
		cancel()
		gw.Stop()
	})
	return &testEnv{stg: stg, engine: engine, ctrl: ctrl}
}

// waitStatus polls until the poll reaches the wanted status.
func (env *testEnv) waitStatus(c *qt.C, pid *types.PollID, status uint8) *types.Poll {
	deadline := time.Now().Add(testTimeout)
	for {
		p, err := env.ctrl.Poll(pid)
		c.Assert(err, qt.IsNil)
		if p.Status == status {
			return p
		}
		if time.Now().After(deadline) {
			c.Fatalf("poll never reached status %d, stuck at %d", status, p.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// vote encrypts a choice for the cluster and submits it, waiting for the
// public vote notification.
func (env *testEnv) vote(c *qt.C, pid *types.PollID, choice uint8) {
	voterPriv, voterPub, err := cryptomxe.GenerateX25519()
	c.Assert(err, qt.IsNil)
	secret, err := cryptomxe.SharedSecret(voterPriv, env.engine.EncryptionPubKey())
	c.Assert(err, qt.IsNil)
	voteNonce := util.Random16()
	ct := cryptomxe.EncryptVote(secret, voteNonce, choice)

	c.Assert(env.ctrl.Vote(util.RandomU64(), pid, ct, voterPub, voteNonce), qt.IsNil)
	select {
	case ev := <-env.ctrl.VoteEvents():
		c.Assert(ev.Timestamp, qt.Not(qt.Equals), int64(0))
	case <-time.After(testTimeout):
		c.Fatal("vote was never counted")
	}
}

func TestPollLifecycle(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	authority := common.HexToAddress("0x30923bfd0fcd7c60f04b04f2b0f62a6ac7b3d0e2")
	c.Assert(env.ctrl.Create(util.RandomU64(), authority, 1, "favorite option?", util.Random16()), qt.IsNil)
	pid := &types.PollID{Authority: authority, ID: 1}
	env.waitStatus(c, pid, types.PollStatusActive)

	// Duplicate identifiers are rejected.
	c.Assert(env.ctrl.Create(util.RandomU64(), authority, 1, "again?", util.Random16()), qt.Equals, ErrPollExists)

	// 2:1:0 in favor of option one.
	env.vote(c, pid, 1)
	env.vote(c, pid, 1)
	env.vote(c, pid, 0)

	// Only the authority may reveal.
	intruder := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	c.Assert(env.ctrl.Reveal(util.RandomU64(), intruder, pid), qt.Equals, ErrInvalidAuthority)

	c.Assert(env.ctrl.Reveal(util.RandomU64(), authority, pid), qt.IsNil)
	select {
	case ev := <-env.ctrl.ResultEvents():
		c.Assert(ev.Winner, qt.Equals, uint8(1))
	case <-time.After(testTimeout):
		c.Fatal("result was never revealed")
	}
	p := env.waitStatus(c, pid, types.PollStatusRevealed)
	c.Assert(p.Winner, qt.Equals, uint8(1))

	// Votes keep counting after the reveal, and the authority may reveal
	// again over the new generation.
	env.vote(c, pid, 2)
	env.vote(c, pid, 2)
	env.vote(c, pid, 2)
	c.Assert(env.ctrl.Reveal(util.RandomU64(), authority, pid), qt.IsNil)
	select {
	case ev := <-env.ctrl.ResultEvents():
		c.Assert(ev.Winner, qt.Equals, uint8(2))
	case <-time.After(testTimeout):
		c.Fatal("second reveal never landed")
	}
}

func TestTieBreaksToLowestIndex(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	authority := common.HexToAddress("0x30923bfd0fcd7c60f04b04f2b0f62a6ac7b3d0e2")
	c.Assert(env.ctrl.Create(util.RandomU64(), authority, 2, "tied", util.Random16()), qt.IsNil)
	pid := &types.PollID{Authority: authority, ID: 2}
	env.waitStatus(c, pid, types.PollStatusActive)

	env.vote(c, pid, 1)
	env.vote(c, pid, 2)

	c.Assert(env.ctrl.Reveal(util.RandomU64(), authority, pid), qt.IsNil)
	select {
	case ev := <-env.ctrl.ResultEvents():
		c.Assert(ev.Winner, qt.Equals, uint8(1))
	case <-time.After(testTimeout):
		c.Fatal("result was never revealed")
	}
}

func TestAbortedVoteLeavesTallyUntouched(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	authority := common.HexToAddress("0x30923bfd0fcd7c60f04b04f2b0f62a6ac7b3d0e2")
	c.Assert(env.ctrl.Create(util.RandomU64(), authority, 3, "q", util.Random16()), qt.IsNil)
	pid := &types.PollID{Authority: authority, ID: 3}
	before := env.waitStatus(c, pid, types.PollStatusActive)

	// A ciphertext sealed against a key the cluster cannot derive aborts
	// inside the cluster; the tally generation must not move.
	var garbage [types.VoteCiphertextSize]byte
	copy(garbage[:], util.RandomBytes(types.VoteCiphertextSize))
	_, voterPub, err := cryptomxe.GenerateX25519()
	c.Assert(err, qt.IsNil)
	c.Assert(env.ctrl.Vote(util.RandomU64(), pid, garbage, voterPub, util.Random16()), qt.IsNil)

	// Wait for the queue to drain, then check nothing changed.
	deadline := time.Now().Add(testTimeout)
	for env.stg.CountPendingComputations() != 0 {
		if time.Now().After(deadline) {
			c.Fatal("computation never consumed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	after, err := env.ctrl.Poll(pid)
	c.Assert(err, qt.IsNil)
	c.Assert(after.Tally, qt.Equals, before.Tally)
	c.Assert(after.Status, qt.Equals, types.PollStatusActive)
	select {
	case <-env.ctrl.VoteEvents():
		c.Fatal("aborted vote must not emit a notification")
	default:
	}
}

func TestVoteRequiresActivePoll(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	pid := &types.PollID{ID: 99}
	var ct [types.VoteCiphertextSize]byte
	var pub [types.EncryptionPubKeySize]byte
	c.Assert(env.ctrl.Vote(1, pid, ct, pub, util.Random16()), qt.Equals, ErrPollNotFound)
	c.Assert(env.ctrl.Reveal(1, common.Address{}, pid), qt.Equals, ErrPollNotFound)
}
