package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/enclavote/enclavote/types"
)

// ClusterInfo carries the cluster identity a voter needs before casting a
// ballot: the x25519 key to derive the vote cipher with, and the address
// result attestations are signed under.
type ClusterInfo struct {
	EncryptionPubKey types.HexBytes `json:"encryptionPubKey"`
	Address          common.Address `json:"address"`
}

// CreatePollRequest is the request body to create a new poll. The authority
// is not a field: it is recovered from the signature over
// CreatePollMessage, so nobody can open a poll in someone else's name.
type CreatePollRequest struct {
	RequestID uint64         `json:"requestId"`
	ID        uint32         `json:"id"`
	Question  string         `json:"question"`
	Nonce     types.HexBytes `json:"nonce"`
	Signature types.HexBytes `json:"signature"`
}

// CreatePollResponse returns the derived poll identifier.
type CreatePollResponse struct {
	PollID types.HexBytes `json:"pollId"`
}

// VoteRequest is the request body to submit an encrypted ballot. Choice is
// the 32-byte ciphertext, PublicKey the voter's ephemeral x25519 key and
// Nonce the encryption nonce; the server never sees the plaintext choice.
type VoteRequest struct {
	RequestID uint64         `json:"requestId"`
	PollID    types.HexBytes `json:"pollId"`
	Choice    types.HexBytes `json:"choice"`
	PublicKey types.HexBytes `json:"publicKey"`
	Nonce     types.HexBytes `json:"nonce"`
}

// RevealRequest is the request body to trigger a reveal. The caller is
// recovered from the signature over RevealMessage and checked against the
// poll authority.
type RevealRequest struct {
	RequestID uint64         `json:"requestId"`
	Signature types.HexBytes `json:"signature"`
}

// PollInfo is the public view of a poll. It never includes the tally
// ciphertexts; Winner is present only once the poll has been revealed.
type PollInfo struct {
	PollID    types.HexBytes `json:"pollId"`
	Authority common.Address `json:"authority"`
	Question  string         `json:"question"`
	Status    string         `json:"status"`
	Winner    *uint8         `json:"winner,omitempty"`
}

// PollListResponse is the response body of the poll listing.
type PollListResponse struct {
	Polls []types.HexBytes `json:"polls"`
}

// CreatePollMessage returns the exact bytes a poll creator signs. Clients
// must build the same string, otherwise the recovered authority differs.
func CreatePollMessage(id uint32, question string, nonce types.HexBytes) []byte {
	return []byte(fmt.Sprintf("create-poll:%d:%s:%x", id, question, []byte(nonce)))
}

// RevealMessage returns the exact bytes the poll authority signs to reveal.
func RevealMessage(pid *types.PollID) []byte {
	return []byte(fmt.Sprintf("reveal-poll:%s", pid.String()))
}

// statusString maps the stored status byte to its public name.
func statusString(status uint8) string {
	switch status {
	case types.PollStatusUninitialized:
		return "uninitialized"
	case types.PollStatusActive:
		return "active"
	case types.PollStatusRevealed:
		return "revealed"
	default:
		return "unknown"
	}
}
