package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db/prefixeddb"
)

// computationKey derives the queue key from the request's correlation handle.
func computationKey(offset uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, offset)
	return key
}

// PushComputation stores a new computation request into the pending queue.
// The gateway performs no deduplication: callers must supply a fresh offset
// per submission, a reused offset overwrites the previous request.
func (s *Storage) PushComputation(req *ComputationRequest) error {
	val, err := encodeArtifact(req)
	if err != nil {
		return fmt.Errorf("encode computation request: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), computationPrefix)
	if err := wTx.Set(computationKey(req.Offset), val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// NextComputation returns the next non-reserved pending request, creates a
// reservation, and returns the request plus its queue key. It returns
// ErrNoMoreElements when nothing is pending.
func (s *Storage) NextComputation() (*ComputationRequest, []byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	pr := prefixeddb.NewPrefixedReader(s.db, computationPrefix)
	var chosenKey, chosenVal []byte
	if err := pr.Iterate(nil, func(k, v []byte) bool {
		if s.isReserved(computationResvPrefix, k) {
			return true
		}
		chosenKey = append([]byte{}, k...)
		chosenVal = v
		return false
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate computations: %w", err)
	}
	if chosenVal == nil {
		return nil, nil, ErrNoMoreElements
	}

	req := &ComputationRequest{}
	if err := decodeArtifact(chosenVal, req); err != nil {
		return nil, nil, fmt.Errorf("decode computation request: %w", err)
	}

	if err := s.setReservation(computationResvPrefix, chosenKey); err != nil {
		return nil, nil, ErrNoMoreElements
	}
	return req, chosenKey, nil
}

// MarkComputationDone removes the request and its reservation once its
// callback has run. The request is consumed exactly once: after this call no
// further callback for the same handle can be delivered.
func (s *Storage) MarkComputationDone(key []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(computationResvPrefix, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if err := s.deleteArtifact(computationPrefix, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete computation request: %w", err)
	}
	return nil
}

// CountPendingComputations returns the number of queued requests, reserved
// ones included.
func (s *Storage) CountPendingComputations() int {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	rd := prefixeddb.NewPrefixedReader(s.db, computationPrefix)
	count := 0
	if err := rd.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0
	}
	return count
}
