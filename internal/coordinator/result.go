package coordinator

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/rating"
	"github.com/edvart/typeduel/internal/store"
)

// resolve closes a session exactly once. Stats and outcome are fixed here on
// the loop; the rating read and the write happen on a separate goroutine.
func (c *Coordinator) resolve(s *Session, reason string) {
	if c.state.Sessions[s.ID] != s || s.Phase == PhaseResolved {
		return
	}

	a, b := s.Players[0], s.Players[1]
	statsA, statsB := s.statsFor(a.ID), s.statsFor(b.ID)

	s.Phase = PhaseResolved
	c.cancelMatchTimers(s.ID)
	delete(c.state.Sessions, s.ID)

	log.WithFields(log.Fields{
		"match_id": s.ID,
		"reason":   reason,
		"score_a":  statsA.FinalScore,
		"score_b":  statsB.FinalScore,
	}).Info("Match resolved")

	pending := pendingResult{
		session: *s,
		stats:   [2]Stats{statsA, statsB},
		outcome: rating.OutcomeOf(statsA.FinalScore, statsB.FinalScore),
		endedAt: c.clock.Now(),
	}

	c.goAsync(func(ctx context.Context) {
		c.finishResult(ctx, pending)
	})
}

type pendingResult struct {
	session Session
	stats   [2]Stats
	outcome rating.Outcome
	endedAt time.Time
}

// goAsync runs storage work off the loop. Run waits for it on shutdown.
func (c *Coordinator) goAsync(fn func(ctx context.Context)) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Coordinator) finishResult(ctx context.Context, p pendingResult) {
	matchID := p.session.ID
	logger := log.WithField("match_id", matchID)

	msg, err := c.recordResult(ctx, p)
	if err != nil {
		logger.WithError(err).Error("Failed to record match result")
		c.delivery.ToRoom(matchID, MatchError{Message: ClientMessage(errRecordFailed)})
		c.delivery.Release(matchID)
		return
	}

	c.delivery.ToRoom(matchID, msg)
	c.delivery.Release(matchID)
	c.emit(MatchCompleted{
		MatchID: matchID,
		Mode:    p.session.Mode,
		Setting: p.session.Setting,
		Result:  msg,
		EndedAt: p.endedAt,
	})
	logger.Info("Match result recorded")
}

// recordResult reads current ratings, applies Elo and commits everything in one write.
func (c *Coordinator) recordResult(ctx context.Context, p pendingResult) (MatchResult, error) {
	var current [2]int
	for i, player := range p.session.Players {
		user, err := c.store.GetUser(ctx, player.ID)
		if err != nil {
			return MatchResult{}, fmt.Errorf("load user %s: %w", player.ID, err)
		}
		if user == nil {
			return MatchResult{}, fmt.Errorf("load user %s: not found", player.ID)
		}
		current[i] = user.Rating
	}

	newA, newB := rating.Update(current[0], current[1], p.outcome)
	updated := [2]int{newA, newB}

	var winnerID *string
	switch p.outcome {
	case rating.Win:
		winnerID = &p.session.Players[0].ID
	case rating.Loss:
		winnerID = &p.session.Players[1].ID
	}

	record := &store.MatchResult{
		MatchID:   p.session.ID,
		Text:      p.session.Text,
		Mode:      string(p.session.Mode),
		Setting:   p.session.Setting,
		WinnerID:  winnerID,
		CreatedAt: p.session.CreatedAt,
		EndedAt:   p.endedAt,
	}
	msg := MatchResult{WinnerID: winnerID, Players: make([]ResultPlayer, 0, 2)}

	for i, player := range p.session.Players {
		record.Players = append(record.Players, store.PlayerResult{
			UserID:     player.ID,
			WPM:        p.stats[i].WPM,
			Accuracy:   p.stats[i].Accuracy,
			FinalScore: p.stats[i].FinalScore,
			OldRating:  current[i],
			NewRating:  updated[i],
		})
		msg.Players = append(msg.Players, ResultPlayer{
			ID:         player.ID,
			Username:   player.Username,
			WPM:        p.stats[i].WPM,
			Accuracy:   p.stats[i].Accuracy,
			FinalScore: p.stats[i].FinalScore,
			OldRating:  current[i],
			NewRating:  updated[i],
		})
	}

	if err := c.store.SaveMatchResult(ctx, record); err != nil {
		return MatchResult{}, fmt.Errorf("save match result: %w", err)
	}
	return msg, nil
}

// handleGetMatchData answers from the live session when there is one and
// falls back to the durable record otherwise.
func (c *Coordinator) handleGetMatchData(cmd GetMatchData) error {
	if s := c.state.Sessions[cmd.MatchID]; s != nil {
		opponent, ok := s.Opponent(cmd.Player.ID)
		if !ok {
			return ErrNotInMatch
		}
		c.delivery.ToConn(cmd.Player.ConnID, MatchDataResponse{
			MatchID:  s.ID,
			Text:     s.Text,
			Opponent: opponent.Public(),
			Mode:     s.Mode,
			Setting:  s.Setting,
		})
		return nil
	}

	c.goAsync(func(ctx context.Context) {
		resp, err := c.lookupMatchData(ctx, cmd)
		if err != nil {
			c.delivery.ToConn(cmd.Player.ConnID, MatchError{Message: ClientMessage(err)})
			return
		}
		c.delivery.ToConn(cmd.Player.ConnID, resp)
	})
	return nil
}

func (c *Coordinator) lookupMatchData(ctx context.Context, cmd GetMatchData) (MatchDataResponse, error) {
	record, err := c.store.GetMatch(ctx, cmd.MatchID)
	if err != nil {
		log.WithError(err).WithField("match_id", cmd.MatchID).Error("Failed to load match")
		return MatchDataResponse{}, errLookupFailed
	}
	if record == nil {
		return MatchDataResponse{}, ErrMatchNotFound
	}

	member := false
	var opponent *store.MatchPlayer
	for i := range record.Players {
		if record.Players[i].UserID == cmd.Player.ID {
			member = true
		} else {
			opponent = &record.Players[i]
		}
	}
	if !member {
		return MatchDataResponse{}, ErrNotInMatch
	}
	if opponent == nil {
		return MatchDataResponse{}, ErrOpponentNotFound
	}

	return MatchDataResponse{
		MatchID: record.ID,
		Text:    record.Text,
		Opponent: Opponent{
			ID:       opponent.UserID,
			Username: opponent.Username,
			Rating:   opponent.Rating,
		},
		Mode:    Mode(record.Mode),
		Setting: record.Setting,
	}, nil
}
