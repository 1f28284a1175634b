package coordinator

import "time"

// Event is a lifecycle notification fanned out to subscribers
// (recorder, push notifier, bus publisher).
type Event interface {
	event() // marker method
}

type MatchCreated struct {
	MatchID   string
	Mode      Mode
	Setting   int
	Text      string
	Players   [2]Player
	CreatedAt time.Time
}

func (MatchCreated) event() {}

// MatchCancelled is emitted when a match is aborted before anyone typed.
type MatchCancelled struct {
	MatchID string
	Reason  string
	At      time.Time
}

func (MatchCancelled) event() {}

// MatchCompleted is emitted after the result has been committed.
type MatchCompleted struct {
	MatchID string
	Mode    Mode
	Setting int
	Result  MatchResult
	EndedAt time.Time
}

func (MatchCompleted) event() {}
