package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PollID identifies a poll. It is composed of:
// - Authority (20 bytes): address of the creator
// - ID (4 bytes): caller-chosen identifier, unique per authority
type PollID struct {
	Authority common.Address
	ID        uint32
}

// Marshal encodes the PollID to bytes.
func (p *PollID) Marshal() []byte {
	id := make([]byte, 4)
	binary.LittleEndian.PutUint32(id, p.ID)

	var buf bytes.Buffer
	buf.Write(p.Authority.Bytes())
	buf.Write(id)
	return buf.Bytes()
}

// Unmarshal decodes bytes to a PollID.
func (p *PollID) Unmarshal(data []byte) error {
	if len(data) != 24 {
		return fmt.Errorf("invalid PollID length: %d", len(data))
	}
	p.Authority = common.BytesToAddress(data[:20])
	p.ID = binary.LittleEndian.Uint32(data[20:24])
	return nil
}

// SetBytes decodes data into the PollID and returns it. It panics on
// malformed input, use Unmarshal to handle the error.
func (p *PollID) SetBytes(data []byte) *PollID {
	if err := p.Unmarshal(data); err != nil {
		panic(err)
	}
	return p
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (p *PollID) MarshalBinary() ([]byte, error) {
	return p.Marshal(), nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface.
func (p *PollID) UnmarshalBinary(data []byte) error {
	return p.Unmarshal(data)
}

// String returns a human readable representation of the poll ID.
func (p *PollID) String() string {
	return hex.EncodeToString(p.Marshal())
}
