package poll

import "errors"

var (
	// ErrInvalidAuthority is returned when Reveal is requested by an
	// identity other than the poll's creator. Nothing is submitted.
	ErrInvalidAuthority = errors.New("caller is not the poll authority")
	// ErrAbortedComputation is surfaced when the cluster reported failure
	// instead of a success payload. The persisted state stays at its last
	// successfully applied generation; the core never retries.
	ErrAbortedComputation = errors.New("the computation was aborted")
	// ErrInvalidInput is returned when an operation's inputs fail
	// validation before any computation is submitted.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPollNotFound is returned when the referenced poll does not exist.
	ErrPollNotFound = errors.New("poll not found")
	// ErrPollNotActive is returned when voting on or revealing a poll whose
	// init computation has not completed yet.
	ErrPollNotActive = errors.New("poll is not active")
	// ErrPollExists is returned when creating a poll with an identifier the
	// authority already used.
	ErrPollExists = errors.New("poll already exists")
)
