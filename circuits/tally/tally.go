// Package tally implements the oblivious tally circuit executed by the MPC
// cluster over its plaintext view of the counters. Every transformation is a
// data-independent sequence of operations: no branch executes or is skipped
// depending on a secret value, so the cluster's communication and timing
// pattern cannot leak which option a vote selected.
package tally

import "github.com/enclavote/enclavote/types"

// VoteStats tracks the vote tallies for a poll, one counter per option.
type VoteStats struct {
	Counts [types.NumOptions]uint64
}

// Init returns the zeroed counters for a new poll.
func Init() VoteStats {
	return VoteStats{}
}

// ctEq64 returns 1 if a == b and 0 otherwise, in constant time.
func ctEq64(a, b uint64) uint64 {
	x := a ^ b
	// (x | -x) has the high bit set iff x != 0.
	return ((x | -x) >> 63) ^ 1
}

// ctSelect returns a if bit is 1 and b if bit is 0. bit must be 0 or 1.
func ctSelect(bit, a, b uint64) uint64 {
	return b ^ (-bit & (a ^ b))
}

// ApplyVote adds one vote to the stats. choice must already be validated to
// be in [0, NumOptions). The increment is expressed as an oblivious
// multiplexer over all counters: each counter is read and written exactly
// once, and the selection is carried in data, not in control flow.
func ApplyVote(choice uint8, stats VoteStats) VoteStats {
	for i := range stats.Counts {
		stats.Counts[i] += ctEq64(uint64(choice), uint64(i))
	}
	return stats
}

// Reveal discloses all counters unconditionally and returns the smallest
// index holding the maximum count. Ties break toward the lowest index. The
// winner is picked through a select chain rather than an early return.
func Reveal(stats VoteStats) uint8 {
	c0, c1, c2 := stats.Counts[0], stats.Counts[1], stats.Counts[2]

	max := c0
	max = ctSelect(ctGt64(c1, max), c1, max)
	max = ctSelect(ctGt64(c2, max), c2, max)

	e0 := ctEq64(c0, max)
	e1 := ctEq64(c1, max)
	winner := ctSelect(e0, 0, ctSelect(e1, 1, 2))
	return uint8(winner)
}

// ctGt64 returns 1 if a > b and 0 otherwise, in constant time.
func ctGt64(a, b uint64) uint64 {
	// Standard borrow trick: the high bit is set iff b - a borrows.
	return ((^b & a) | ((^b | a) & (b - a))) >> 63
}
