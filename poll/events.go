package poll

import (
	"go.vocdoni.io/dvote/log"

	"github.com/enclavote/enclavote/types"
)

// VoteRecorded is the public notification that some vote was counted. It
// carries only a timestamp: never the vote value, the voter, or the tally.
type VoteRecorded struct {
	Timestamp int64 `json:"timestamp"`
}

// ResultRevealed is the public notification of a completed reveal. It
// carries only the winning option index, never the counts.
type ResultRevealed struct {
	PollID *types.PollID `json:"pollId"`
	Winner uint8         `json:"winner"`
}

const eventBuffer = 128

// VoteEvents returns the channel of vote notifications.
func (ctrl *Controller) VoteEvents() <-chan VoteRecorded {
	return ctrl.voteEvents
}

// ResultEvents returns the channel of reveal notifications.
func (ctrl *Controller) ResultEvents() <-chan ResultRevealed {
	return ctrl.resultEvents
}

// emitVote publishes a vote notification without blocking the callback path.
func (ctrl *Controller) emitVote(ev VoteRecorded) {
	select {
	case ctrl.voteEvents <- ev:
	default:
		log.Warnw("vote event dropped, channel full")
	}
}

// emitResult publishes a reveal notification without blocking the callback
// path.
func (ctrl *Controller) emitResult(ev ResultRevealed) {
	select {
	case ctrl.resultEvents <- ev:
	default:
		log.Warnw("result event dropped, channel full")
	}
}
