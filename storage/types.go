package storage

import (
	"encoding/binary"

	"github.com/enclavote/enclavote/crypto/ethereum"
	"github.com/enclavote/enclavote/types"
)

// ComputationKind names an encrypted instruction the cluster can execute.
type ComputationKind string

const (
	// KindInitVoteStats initializes the encrypted counters of a new poll.
	KindInitVoteStats ComputationKind = "init_vote_stats"
	// KindVote adds one encrypted vote to the counters.
	KindVote ComputationKind = "vote"
	// KindRevealResult discloses the winning option index.
	KindRevealResult ComputationKind = "reveal_result"
)

// CompDefOffset derives the stable numeric identifier of a computation kind,
// the low 4 bytes of the keccak digest of its name.
func CompDefOffset(kind ComputationKind) uint32 {
	return binary.LittleEndian.Uint32(ethereum.HashRaw([]byte(kind))[:4])
}

// ArgumentKind tags the entries of an ordered argument list.
type ArgumentKind uint8

const (
	// ArgPlaintextU128 is a plaintext 128-bit value (a nonce).
	ArgPlaintextU128 ArgumentKind = iota
	// ArgX25519Pubkey is a cluster-domain x25519 public key.
	ArgX25519Pubkey
	// ArgEncryptedU8 is a confidential 8-bit value, a 32-byte ciphertext.
	ArgEncryptedU8
	// ArgAccountRef references a byte range of a persisted record, so the
	// cluster reads the current ciphertexts instead of a re-serialized copy.
	ArgAccountRef
)

// Argument is one typed entry of a computation argument list. The order of
// arguments is part of the wire contract and must match the declared
// parameter order of the circuit.
type Argument struct {
	Kind   ArgumentKind   `cbor:"0,keyasint"`
	U128   types.HexBytes `cbor:"1,keyasint,omitempty"` // 16 bytes, ArgPlaintextU128
	Block  types.HexBytes `cbor:"2,keyasint,omitempty"` // 32 bytes, ArgX25519Pubkey / ArgEncryptedU8
	Key    types.HexBytes `cbor:"3,keyasint,omitempty"` // record key, ArgAccountRef
	Offset uint32         `cbor:"4,keyasint,omitempty"`
	Length uint32         `cbor:"5,keyasint,omitempty"`
}

// PlaintextU128Arg builds a plaintext nonce argument.
func PlaintextU128Arg(nonce [types.TallyNonceSize]byte) Argument {
	return Argument{Kind: ArgPlaintextU128, U128: nonce[:]}
}

// X25519PubkeyArg builds a public key argument.
func X25519PubkeyArg(pub [types.EncryptionPubKeySize]byte) Argument {
	return Argument{Kind: ArgX25519Pubkey, Block: pub[:]}
}

// EncryptedU8Arg builds a confidential 8-bit value argument.
func EncryptedU8Arg(ct [types.VoteCiphertextSize]byte) Argument {
	return Argument{Kind: ArgEncryptedU8, Block: ct[:]}
}

// AccountRefArg builds a record reference argument.
func AccountRefArg(key []byte, offset, length uint32) Argument {
	return Argument{Kind: ArgAccountRef, Key: key, Offset: offset, Length: length}
}

// CallbackAccount names a persisted record a computation callback is
// permitted to mutate.
type CallbackAccount struct {
	Key      types.HexBytes `cbor:"0,keyasint"`
	Writable bool           `cbor:"1,keyasint"`
}

// ComputationRequest describes a pending MPC job. It is created by the
// submitting operation and consumed exactly once by the matching callback.
type ComputationRequest struct {
	Offset    uint64            `cbor:"0,keyasint"` // caller-chosen correlation handle
	Kind      ComputationKind   `cbor:"1,keyasint"`
	Args      []Argument        `cbor:"2,keyasint"`
	Callbacks []CallbackAccount `cbor:"3,keyasint,omitempty"`
}

// ComputationResult is the outcome of a ComputationRequest: a cbor success
// payload or an abort marker, plus the cluster's attestation over the
// payload and the originating request.
type ComputationResult struct {
	Offset      uint64          `cbor:"0,keyasint"`
	Kind        ComputationKind `cbor:"1,keyasint"`
	Aborted     bool            `cbor:"2,keyasint,omitempty"`
	Output      types.HexBytes  `cbor:"3,keyasint,omitempty"`
	Attestation types.HexBytes  `cbor:"4,keyasint,omitempty"`
}

// TallyOutput is the success payload of init_vote_stats and vote: a fresh
// ciphertext generation.
type TallyOutput struct {
	Counts [types.NumOptions]types.HexBytes `cbor:"0,keyasint"`
	Nonce  types.HexBytes                   `cbor:"1,keyasint"`
}

// Tally converts the output payload into an EncryptedTally, validating the
// protocol widths.
func (o *TallyOutput) Tally() (types.EncryptedTally, bool) {
	var t types.EncryptedTally
	if len(o.Nonce) != types.TallyNonceSize {
		return t, false
	}
	for i := range o.Counts {
		if len(o.Counts[i]) != types.SlotSize {
			return t, false
		}
		copy(t.Counts[i][:], o.Counts[i])
	}
	copy(t.Nonce[:], o.Nonce)
	return t, true
}

// NewTallyOutput builds the payload for an EncryptedTally.
func NewTallyOutput(t types.EncryptedTally) TallyOutput {
	var o TallyOutput
	for i := range t.Counts {
		o.Counts[i] = append(types.HexBytes{}, t.Counts[i][:]...)
	}
	o.Nonce = append(types.HexBytes{}, t.Nonce[:]...)
	return o
}

// RevealOutput is the success payload of reveal_result.
type RevealOutput struct {
	Winner uint8 `cbor:"0,keyasint"`
}
