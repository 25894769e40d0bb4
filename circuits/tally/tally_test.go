package tally

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestApplyVoteConservation(t *testing.T) {
	c := qt.New(t)

	stats := Init()
	votes := []uint8{0, 1, 2, 2, 1, 2, 0, 2}
	for _, v := range votes {
		stats = ApplyVote(v, stats)
	}

	c.Assert(stats.Counts, qt.Equals, [3]uint64{2, 2, 4})

	total := uint64(0)
	for _, n := range stats.Counts {
		total += n
	}
	c.Assert(total, qt.Equals, uint64(len(votes)))
}

func TestRevealTieBreak(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		counts [3]uint64
		winner uint8
	}{
		{[3]uint64{3, 3, 1}, 0},
		{[3]uint64{1, 5, 5}, 1},
		{[3]uint64{0, 0, 0}, 0},
		{[3]uint64{7, 7, 7}, 0},
		{[3]uint64{0, 0, 1}, 2},
		{[3]uint64{0, 2, 1}, 1},
		{[3]uint64{10, 0, 0}, 0},
		{[3]uint64{1, 2, 3}, 2},
	}
	for _, tc := range cases {
		c.Assert(Reveal(VoteStats{Counts: tc.counts}), qt.Equals, tc.winner,
			qt.Commentf("counts %v", tc.counts))
	}
}

func TestConstantTimeHelpers(t *testing.T) {
	c := qt.New(t)

	values := []uint64{0, 1, 2, 63, 64, 1 << 32, 1<<63 - 1, 1 << 63, ^uint64(0)}
	for _, a := range values {
		for _, b := range values {
			wantEq := uint64(0)
			if a == b {
				wantEq = 1
			}
			wantGt := uint64(0)
			if a > b {
				wantGt = 1
			}
			c.Assert(ctEq64(a, b), qt.Equals, wantEq, qt.Commentf("eq(%d,%d)", a, b))
			c.Assert(ctGt64(a, b), qt.Equals, wantGt, qt.Commentf("gt(%d,%d)", a, b))
		}
	}

	c.Assert(ctSelect(1, 11, 22), qt.Equals, uint64(11))
	c.Assert(ctSelect(0, 11, 22), qt.Equals, uint64(22))
}
