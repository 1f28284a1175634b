package matchrecorder

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/coordinator"
	"github.com/edvart/typeduel/internal/store"
)

// MatchStore is the part of the store the recorder writes to.
type MatchStore interface {
	CreateMatch(ctx context.Context, match *store.Match) error
	MarkMatchAborted(ctx context.Context, matchID string, at time.Time) error
}

// Recorder keeps the durable match table in step with pairings and aborts.
// Completed results are written by the coordinator itself, in one transaction
// with the rating update.
type Recorder struct {
	store MatchStore
}

// New creates a new match recorder.
func New(s MatchStore) *Recorder {
	return &Recorder{store: s}
}

// Run listens for match events and records them.
func (r *Recorder) Run(ctx context.Context, events <-chan coordinator.Event) {
	log.Info("Match recorder started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Match recorder shutting down")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.handleEvent(ctx, event)
		}
	}
}

func (r *Recorder) handleEvent(ctx context.Context, event coordinator.Event) {
	switch e := event.(type) {
	case coordinator.MatchCreated:
		r.recordMatchCreated(ctx, e)
	case coordinator.MatchCancelled:
		r.recordMatchCancelled(ctx, e)
	}
}

func (r *Recorder) recordMatchCreated(ctx context.Context, e coordinator.MatchCreated) {
	match := &store.Match{
		ID:        e.MatchID,
		Text:      e.Text,
		Mode:      string(e.Mode),
		Setting:   e.Setting,
		Status:    store.MatchStatusInProgress,
		CreatedAt: e.CreatedAt,
	}
	for _, p := range e.Players {
		match.Players = append(match.Players, store.MatchPlayer{UserID: p.ID, Username: p.Username})
	}

	if err := r.store.CreateMatch(ctx, match); err != nil {
		log.WithError(err).WithField("match_id", e.MatchID).Error("Failed to record match")
		return
	}
	log.WithField("match_id", e.MatchID).Debug("Recorded match")
}

func (r *Recorder) recordMatchCancelled(ctx context.Context, e coordinator.MatchCancelled) {
	if err := r.store.MarkMatchAborted(ctx, e.MatchID, e.At); err != nil {
		log.WithError(err).WithField("match_id", e.MatchID).Error("Failed to mark match aborted")
		return
	}
	log.WithFields(log.Fields{
		"match_id": e.MatchID,
		"reason":   e.Reason,
	}).Info("Recorded aborted match")
}
