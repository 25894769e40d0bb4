package storage

import (
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/enclavote/enclavote/types"
)

// Poll retrieves a poll record. It returns ErrNotFound if the poll does not
// exist.
func (s *Storage) Poll(pid *types.PollID) (*types.Poll, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, pollPrefix)
	data, err := rd.Get(pid.Marshal())
	if err != nil {
		if err == db.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get poll: %w", err)
	}
	p := &types.Poll{}
	if err := p.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("decode poll: %w", err)
	}
	return p, nil
}

// CreatePoll stores a new poll record. It returns ErrAlreadyExists if a poll
// with the same identifier was created before.
func (s *Storage) CreatePoll(p *types.Poll) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := p.PollID().Marshal()
	rd := prefixeddb.NewPrefixedReader(s.db, pollPrefix)
	if _, err := rd.Get(key); err == nil {
		return ErrAlreadyExists
	}
	return s.writePoll(key, p)
}

// SetTally replaces the encrypted tally of a poll with a new generation and
// moves an uninitialized poll to active. The counts and the nonce are
// persisted in a single record write: a concurrent reader sees either the
// whole previous generation or the whole new one.
func (s *Storage) SetTally(pid *types.PollID, tally types.EncryptedTally) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	p, err := s.Poll(pid)
	if err != nil {
		return err
	}
	p.Tally = tally
	if p.Status == types.PollStatusUninitialized {
		p.Status = types.PollStatusActive
	}
	return s.writePoll(pid.Marshal(), p)
}

// SetRevealed marks the poll as revealed with the winning option index.
func (s *Storage) SetRevealed(pid *types.PollID, winner uint8) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	p, err := s.Poll(pid)
	if err != nil {
		return err
	}
	p.Status = types.PollStatusRevealed
	p.Winner = winner
	return s.writePoll(pid.Marshal(), p)
}

// ListPolls returns the identifiers of all stored polls.
func (s *Storage) ListPolls() ([]*types.PollID, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, pollPrefix)
	var pids []*types.PollID
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		pid := &types.PollID{}
		if err := pid.Unmarshal(k); err == nil {
			pids = append(pids, pid)
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate polls: %w", err)
	}
	return pids, nil
}

// ReadRecord returns length bytes of the marshalled poll record stored under
// key, starting at offset. The computation engine resolves account-reference
// arguments through this method.
func (s *Storage) ReadRecord(key []byte, offset, length uint32) ([]byte, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, pollPrefix)
	data, err := rd.Get(key)
	if err != nil {
		if err == db.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	end := int(offset) + int(length)
	if end > len(data) {
		return nil, fmt.Errorf("record reference out of range: %d+%d > %d", offset, length, len(data))
	}
	out := make([]byte, length)
	copy(out, data[offset:end])
	return out, nil
}

func (s *Storage) writePoll(key []byte, p *types.Poll) error {
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("encode poll: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), pollPrefix)
	if err := wTx.Set(key, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}
