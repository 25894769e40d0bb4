// Package mxe hosts the in-process stand-in for the external MPC cluster: it
// executes the tally circuit over the cluster's plaintext view of the
// encrypted state and signs every result it emits. Nothing outside this
// package (and the cipher suite it uses) ever sees a decrypted counter or
// vote. A deployment against a real cluster replaces the Engine behind the
// gateway's Executor interface.
package mxe

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/circuits/tally"
	"github.com/enclavote/enclavote/crypto/ethereum"
	cryptomxe "github.com/enclavote/enclavote/crypto/mxe"
	"github.com/enclavote/enclavote/gateway"
	"github.com/enclavote/enclavote/storage"
	"github.com/enclavote/enclavote/types"
)

// RecordReader resolves account-reference arguments against the persisted
// records. The storage package implements it.
type RecordReader interface {
	ReadRecord(key []byte, offset, length uint32) ([]byte, error)
}

// Engine executes computation requests with the cluster's key material.
type Engine struct {
	records RecordReader

	rootKey    cryptomxe.RootKey
	x25519Priv [32]byte
	x25519Pub  [32]byte
	signer     *ethereum.SignKeys
}

// New creates an Engine with fresh cluster key material.
func New(records RecordReader) (*Engine, error) {
	if records == nil {
		return nil, fmt.Errorf("record reader cannot be nil")
	}
	rootKey, err := cryptomxe.NewRootKey()
	if err != nil {
		return nil, err
	}
	priv, pub, err := cryptomxe.GenerateX25519()
	if err != nil {
		return nil, err
	}
	signer := ethereum.NewSignKeys()
	if err := signer.Generate(); err != nil {
		return nil, err
	}
	return &Engine{
		records:    records,
		rootKey:    rootKey,
		x25519Priv: priv,
		x25519Pub:  pub,
		signer:     signer,
	}, nil
}

// Address returns the cluster's registered signing identity. The gateway
// verifies result attestations against it.
func (e *Engine) Address() common.Address {
	return e.signer.Address()
}

// EncryptionPubKey returns the cluster's x25519 public key. Voters derive
// their vote encryption secret from it.
func (e *Engine) EncryptionPubKey() [32]byte {
	return e.x25519Pub
}

// Execute runs one computation request and returns its signed result.
// Failures inside the computation (malformed arguments, undecryptable
// inputs, out-of-range votes) produce an aborted result rather than an
// error; the error return is reserved for a cluster that cannot answer at
// all.
func (e *Engine) Execute(_ context.Context, req *storage.ComputationRequest) (*storage.ComputationResult, error) {
	var (
		output []byte
		err    error
	)
	switch req.Kind {
	case storage.KindInitVoteStats:
		output, err = e.initVoteStats(req.Args)
	case storage.KindVote:
		output, err = e.vote(req.Args)
	case storage.KindRevealResult:
		output, err = e.revealResult(req.Args)
	default:
		err = fmt.Errorf("unknown computation kind %q", req.Kind)
	}

	res := &storage.ComputationResult{
		Offset: req.Offset,
		Kind:   req.Kind,
	}
	if err != nil {
		log.Warnw("computation aborted",
			"offset", req.Offset,
			"kind", string(req.Kind),
			"error", err.Error(),
		)
		res.Aborted = true
	} else {
		res.Output = output
	}

	attestation, signErr := e.signer.SignEthereum(gateway.ResultDigest(res))
	if signErr != nil {
		return nil, fmt.Errorf("sign result: %w", signErr)
	}
	res.Attestation = attestation
	return res, nil
}

// initVoteStats seals zeroed counters under the supplied nonce.
// Args: [PlaintextU128 nonce].
func (e *Engine) initVoteStats(args []storage.Argument) ([]byte, error) {
	nonce, err := nonceArg(args, 0)
	if err != nil {
		return nil, err
	}
	stats := tally.Init()
	return e.sealTally(stats, nonce)
}

// vote decrypts one vote under the voter's shared secret, applies it to the
// decrypted counters and re-seals them under a fresh nonce.
// Args: [X25519Pubkey][PlaintextU128 voteNonce][EncryptedU8 choice]
// [PlaintextU128 tallyNonce][AccountRef counters].
func (e *Engine) vote(args []storage.Argument) ([]byte, error) {
	voterPub, err := blockArg(args, 0, storage.ArgX25519Pubkey)
	if err != nil {
		return nil, err
	}
	voteNonce, err := nonceArg(args, 1)
	if err != nil {
		return nil, err
	}
	choiceCt, err := blockArg(args, 2, storage.ArgEncryptedU8)
	if err != nil {
		return nil, err
	}
	tallyNonce, err := nonceArg(args, 3)
	if err != nil {
		return nil, err
	}
	counts, err := e.referencedCounts(args, 4, tallyNonce)
	if err != nil {
		return nil, err
	}

	secret, err := cryptomxe.SharedSecret(e.x25519Priv, voterPub)
	if err != nil {
		return nil, err
	}
	choice, err := cryptomxe.DecryptVote(secret, voteNonce, choiceCt)
	if err != nil {
		return nil, fmt.Errorf("decrypt vote: %w", err)
	}
	if choice >= types.NumOptions {
		return nil, fmt.Errorf("vote choice out of range: %d", choice)
	}

	stats := tally.ApplyVote(choice, tally.VoteStats{Counts: counts})

	freshNonce, err := cryptomxe.NewTallyNonce()
	if err != nil {
		return nil, err
	}
	return e.sealTally(stats, freshNonce)
}

// revealResult decrypts all counters unconditionally and returns the winning
// option index. Only the index leaves the cluster boundary.
// Args: [PlaintextU128 tallyNonce][AccountRef counters].
func (e *Engine) revealResult(args []storage.Argument) ([]byte, error) {
	tallyNonce, err := nonceArg(args, 0)
	if err != nil {
		return nil, err
	}
	counts, err := e.referencedCounts(args, 1, tallyNonce)
	if err != nil {
		return nil, err
	}
	winner := tally.Reveal(tally.VoteStats{Counts: counts})
	return encodeOutput(storage.RevealOutput{Winner: winner})
}

// referencedCounts resolves an account-reference argument and decrypts the
// counter slots it points at.
func (e *Engine) referencedCounts(args []storage.Argument, i int, nonce [types.TallyNonceSize]byte) ([types.NumOptions]uint64, error) {
	var counts [types.NumOptions]uint64
	if i >= len(args) || args[i].Kind != storage.ArgAccountRef {
		return counts, fmt.Errorf("argument %d: expected account reference", i)
	}
	ref := args[i]
	if ref.Length != types.TallyLength {
		return counts, fmt.Errorf("account reference length %d, expected %d", ref.Length, types.TallyLength)
	}
	data, err := e.records.ReadRecord(ref.Key, ref.Offset, ref.Length)
	if err != nil {
		return counts, fmt.Errorf("read referenced record: %w", err)
	}
	var slots [types.NumOptions][types.SlotSize]byte
	for j := range slots {
		copy(slots[j][:], data[j*types.SlotSize:])
	}
	return cryptomxe.DecryptCounts(e.rootKey, nonce, slots)
}

// sealTally encrypts the counters under a nonce and encodes the payload.
func (e *Engine) sealTally(stats tally.VoteStats, nonce [types.TallyNonceSize]byte) ([]byte, error) {
	t := types.EncryptedTally{
		Counts: cryptomxe.EncryptCounts(e.rootKey, nonce, stats.Counts),
		Nonce:  nonce,
	}
	return encodeOutput(storage.NewTallyOutput(t))
}

func encodeOutput(v any) ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return em.Marshal(v)
}

func nonceArg(args []storage.Argument, i int) ([types.TallyNonceSize]byte, error) {
	var nonce [types.TallyNonceSize]byte
	if i >= len(args) || args[i].Kind != storage.ArgPlaintextU128 || len(args[i].U128) != types.TallyNonceSize {
		return nonce, fmt.Errorf("argument %d: expected plaintext u128", i)
	}
	copy(nonce[:], args[i].U128)
	return nonce, nil
}

func blockArg(args []storage.Argument, i int, kind storage.ArgumentKind) ([32]byte, error) {
	var block [32]byte
	if i >= len(args) || args[i].Kind != kind || len(args[i].Block) != 32 {
		return block, fmt.Errorf("argument %d: expected 32-byte block of kind %d", i, kind)
	}
	copy(block[:], args[i].Block)
	return block, nil
}
