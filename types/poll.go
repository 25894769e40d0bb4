package types

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Poll lifecycle states.
const (
	// PollStatusUninitialized means the poll record exists with provisional
	// zero ciphertexts while the init computation is still in flight.
	PollStatusUninitialized uint8 = iota
	// PollStatusActive means the cluster produced the initial tally
	// generation and the poll accepts votes.
	PollStatusActive
	// PollStatusRevealed means a reveal computation completed. The poll
	// still accepts votes; the status is informational for clients.
	PollStatusRevealed
)

// EncryptedTally is the confidential counter state of a poll: one ciphertext
// slot per option plus the nonce binding the slots to the cluster's
// randomness domain. Counts and Nonce always change together, as a pair.
type EncryptedTally struct {
	Counts [NumOptions][SlotSize]byte
	Nonce  [TallyNonceSize]byte
}

// Poll is the per-poll record persisted by the state store. Its binary
// layout is fixed (see Marshal) because the gateway references the counters
// region by byte offset.
type Poll struct {
	Bump      uint8
	Tally     EncryptedTally
	ID        uint32
	Authority common.Address
	Question  string
	Status    uint8
	Winner    uint8 // meaningful only when Status is PollStatusRevealed
}

// pollFixedSize is the size of the fixed part of the record, up to and
// including the question length prefix.
const pollFixedSize = 1 + TallyLength + 4 + 32 + TallyNonceSize + 1

// PollID returns the identifier of the poll.
func (p *Poll) PollID() *PollID {
	return &PollID{Authority: p.Authority, ID: p.ID}
}

// Marshal encodes the poll record:
//
//	[bump:1][counts:3x32][id:4][authority:32][nonce:16][qlen:1][question:<=50][status:1][winner:1]
//
// The authority address occupies the low 20 bytes of its 32-byte field.
// Integers are little-endian.
func (p *Poll) Marshal() ([]byte, error) {
	if len(p.Question) > MaxQuestionLen {
		return nil, fmt.Errorf("question too long: %d > %d", len(p.Question), MaxQuestionLen)
	}
	buf := bytes.NewBuffer(make([]byte, 0, pollFixedSize+len(p.Question)+2))
	buf.WriteByte(p.Bump)
	for i := range p.Tally.Counts {
		buf.Write(p.Tally.Counts[i][:])
	}
	id := make([]byte, 4)
	binary.LittleEndian.PutUint32(id, p.ID)
	buf.Write(id)
	authority := make([]byte, 32)
	copy(authority[12:], p.Authority.Bytes())
	buf.Write(authority)
	buf.Write(p.Tally.Nonce[:])
	buf.WriteByte(uint8(len(p.Question)))
	buf.WriteString(p.Question)
	buf.WriteByte(p.Status)
	buf.WriteByte(p.Winner)
	return buf.Bytes(), nil
}

// Unmarshal decodes a poll record.
func (p *Poll) Unmarshal(data []byte) error {
	if len(data) < pollFixedSize+2 {
		return fmt.Errorf("poll record too short: %d bytes", len(data))
	}
	p.Bump = data[0]
	off := 1
	for i := range p.Tally.Counts {
		copy(p.Tally.Counts[i][:], data[off:off+SlotSize])
		off += SlotSize
	}
	p.ID = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	p.Authority = common.BytesToAddress(data[off+12 : off+32])
	off += 32
	copy(p.Tally.Nonce[:], data[off:off+TallyNonceSize])
	off += TallyNonceSize
	qlen := int(data[off])
	off++
	if qlen > MaxQuestionLen || len(data) != off+qlen+2 {
		return fmt.Errorf("malformed poll record")
	}
	p.Question = string(data[off : off+qlen])
	off += qlen
	p.Status = data[off]
	p.Winner = data[off+1]
	return nil
}

// String returns a JSON representation of the public poll fields.
func (p *Poll) String() string {
	data, err := json.Marshal(map[string]any{
		"id":        p.ID,
		"authority": p.Authority.Hex(),
		"question":  p.Question,
		"status":    p.Status,
	})
	if err != nil {
		return ""
	}
	return string(data)
}
