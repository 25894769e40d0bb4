// Package poll orchestrates the lifecycle of confidential polls: Create,
// Vote and Reveal submit computations to the MPC cluster through the
// gateway, and the matching callbacks apply verified results to the state
// store. Operations are short synchronous steps; between a submission and
// its callback the poll's tally is logically in flight, and two concurrent
// votes race on which request captures the pre-update generation; the
// cluster serializes computations over the same record, not this package.
package poll

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/gateway"
	"github.com/enclavote/enclavote/storage"
	"github.com/enclavote/enclavote/types"
)

// Controller drives poll operations against the storage and the gateway.
type Controller struct {
	stg *storage.Storage
	gw  *gateway.Gateway

	voteEvents   chan VoteRecorded
	resultEvents chan ResultRevealed
}

// New creates a Controller and registers its callback handlers on the
// gateway.
func New(stg *storage.Storage, gw *gateway.Gateway) *Controller {
	ctrl := &Controller{
		stg:          stg,
		gw:           gw,
		voteEvents:   make(chan VoteRecorded, eventBuffer),
		resultEvents: make(chan ResultRevealed, eventBuffer),
	}
	gw.RegisterHandler(storage.KindInitVoteStats, ctrl.initCallback)
	gw.RegisterHandler(storage.KindVote, ctrl.voteCallback)
	gw.RegisterHandler(storage.KindRevealResult, ctrl.revealCallback)
	return ctrl
}

// Poll returns the stored poll record.
func (ctrl *Controller) Poll(pid *types.PollID) (*types.Poll, error) {
	p, err := ctrl.stg.Poll(pid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return p, nil
}

// Create allocates a new poll with provisional zero ciphertexts and submits
// the init computation that produces the first tally generation. The poll
// stays uninitialized until the callback lands; if the init computation
// aborts, it remains stranded in the provisional state (no rollback).
func (ctrl *Controller) Create(offset uint64, authority common.Address, id uint32, question string, nonce [types.TallyNonceSize]byte) error {
	if len(question) > types.MaxQuestionLen {
		return fmt.Errorf("%w: question exceeds %d characters", ErrInvalidInput, types.MaxQuestionLen)
	}

	p := &types.Poll{
		ID:        id,
		Authority: authority,
		Question:  question,
		Status:    types.PollStatusUninitialized,
	}
	p.Tally.Nonce = nonce
	if err := ctrl.stg.CreatePoll(p); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrPollExists
		}
		return fmt.Errorf("create poll: %w", err)
	}

	pollKey := p.PollID().Marshal()
	if err := ctrl.gw.Submit(&storage.ComputationRequest{
		Offset: offset,
		Kind:   storage.KindInitVoteStats,
		Args:   []storage.Argument{storage.PlaintextU128Arg(nonce)},
		Callbacks: []storage.CallbackAccount{
			{Key: pollKey, Writable: true},
		},
	}); err != nil {
		return err
	}

	log.Infow("poll created", "pollId", p.PollID().String(), "question", question)
	return nil
}

// Vote submits an applyVote computation referencing the poll's current
// ciphertext generation. The encrypted choice is never inspected here; the
// cluster validates its range and aborts out-of-range votes.
func (ctrl *Controller) Vote(offset uint64, pid *types.PollID, choice [types.VoteCiphertextSize]byte, voterPub [types.EncryptionPubKeySize]byte, voteNonce [types.TallyNonceSize]byte) error {
	p, err := ctrl.Poll(pid)
	if err != nil {
		return err
	}
	if p.Status == types.PollStatusUninitialized {
		return ErrPollNotActive
	}

	pollKey := pid.Marshal()
	return ctrl.gw.Submit(&storage.ComputationRequest{
		Offset: offset,
		Kind:   storage.KindVote,
		Args: []storage.Argument{
			storage.X25519PubkeyArg(voterPub),
			storage.PlaintextU128Arg(voteNonce),
			storage.EncryptedU8Arg(choice),
			storage.PlaintextU128Arg(p.Tally.Nonce),
			storage.AccountRefArg(pollKey, types.TallyOffset, types.TallyLength),
		},
		Callbacks: []storage.CallbackAccount{
			{Key: pollKey, Writable: true},
		},
	})
}

// Reveal submits a reveal computation for the poll. Only the poll authority
// may trigger it; anyone else is rejected before anything is submitted.
// Revealing does not freeze the poll: votes cast afterwards keep counting,
// and the authority may reveal again over the new generation.
func (ctrl *Controller) Reveal(offset uint64, caller common.Address, pid *types.PollID) error {
	p, err := ctrl.Poll(pid)
	if err != nil {
		return err
	}
	if caller != p.Authority {
		return ErrInvalidAuthority
	}
	if p.Status == types.PollStatusUninitialized {
		return ErrPollNotActive
	}

	pollKey := pid.Marshal()
	return ctrl.gw.Submit(&storage.ComputationRequest{
		Offset: offset,
		Kind:   storage.KindRevealResult,
		Args: []storage.Argument{
			storage.PlaintextU128Arg(p.Tally.Nonce),
			storage.AccountRefArg(pollKey, types.TallyOffset, types.TallyLength),
		},
		Callbacks: []storage.CallbackAccount{
			{Key: pollKey, Writable: true},
		},
	})
}

// callbackPollID extracts the poll the callback is permitted to mutate.
func callbackPollID(req *storage.ComputationRequest) (*types.PollID, error) {
	if len(req.Callbacks) == 0 {
		return nil, fmt.Errorf("computation %d carries no callback target", req.Offset)
	}
	pid := &types.PollID{}
	if err := pid.Unmarshal(req.Callbacks[0].Key); err != nil {
		return nil, fmt.Errorf("malformed callback target: %w", err)
	}
	return pid, nil
}

// initCallback applies the first tally generation. On abort the poll stays
// in its provisional uninitialized state.
func (ctrl *Controller) initCallback(req *storage.ComputationRequest, res *storage.ComputationResult) error {
	pid, err := callbackPollID(req)
	if err != nil {
		return err
	}
	if res.Aborted {
		return fmt.Errorf("init of poll %s: %w", pid, ErrAbortedComputation)
	}
	tally, err := decodeTally(res.Output)
	if err != nil {
		return err
	}
	if err := ctrl.stg.SetTally(pid, tally); err != nil {
		return fmt.Errorf("apply init result: %w", err)
	}
	log.Infow("poll activated", "pollId", pid.String())
	return nil
}

// voteCallback replaces the tally with the new generation and emits the
// public vote notification. On abort the tally equals its pre-submission
// value, the result is discarded.
func (ctrl *Controller) voteCallback(req *storage.ComputationRequest, res *storage.ComputationResult) error {
	pid, err := callbackPollID(req)
	if err != nil {
		return err
	}
	if res.Aborted {
		return fmt.Errorf("vote on poll %s: %w", pid, ErrAbortedComputation)
	}
	tally, err := decodeTally(res.Output)
	if err != nil {
		return err
	}
	if err := ctrl.stg.SetTally(pid, tally); err != nil {
		return fmt.Errorf("apply vote result: %w", err)
	}
	ctrl.emitVote(VoteRecorded{Timestamp: time.Now().Unix()})
	return nil
}

// revealCallback records the winner and emits the public result event. Only
// the winning index is ever disclosed.
func (ctrl *Controller) revealCallback(req *storage.ComputationRequest, res *storage.ComputationResult) error {
	pid, err := callbackPollID(req)
	if err != nil {
		return err
	}
	if res.Aborted {
		return fmt.Errorf("reveal of poll %s: %w", pid, ErrAbortedComputation)
	}
	out := storage.RevealOutput{}
	if err := cbor.Unmarshal(res.Output, &out); err != nil {
		return fmt.Errorf("decode reveal output: %w", err)
	}
	if out.Winner >= types.NumOptions {
		return fmt.Errorf("winner index out of range: %d", out.Winner)
	}
	if err := ctrl.stg.SetRevealed(pid, out.Winner); err != nil {
		return fmt.Errorf("apply reveal result: %w", err)
	}
	ctrl.emitResult(ResultRevealed{PollID: pid, Winner: out.Winner})
	log.Infow("poll result revealed", "pollId", pid.String(), "winner", out.Winner)
	return nil
}

func decodeTally(output []byte) (types.EncryptedTally, error) {
	out := storage.TallyOutput{}
	if err := cbor.Unmarshal(output, &out); err != nil {
		return types.EncryptedTally{}, fmt.Errorf("decode tally output: %w", err)
	}
	tally, ok := out.Tally()
	if !ok {
		return types.EncryptedTally{}, fmt.Errorf("malformed tally output")
	}
	return tally, nil
}
