package coordinator

import (
	"math"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const abortMessage = "Match aborted. Neither player started."

func (c *Coordinator) startMatch(key QueueKey, players [2]Player) {
	matchID := uuid.New().String()
	now := c.clock.Now()
	session := newSession(matchID, key, c.text(key.Mode, key.Setting), players, now)
	c.state.Sessions[matchID] = session

	log.WithFields(log.Fields{
		"match_id": matchID,
		"queue":    key.String(),
		"players":  []string{players[0].Username, players[1].Username},
		"active":   len(c.state.Sessions),
	}).Info("Match created")

	for i, p := range players {
		opponent := players[1-i]
		c.delivery.Join(p.ConnID, matchID)
		c.delivery.ToConn(p.ConnID, MatchFound{
			MatchID:  matchID,
			Opponent: opponent.Public(),
			Text:     session.Text,
			Mode:     key.Mode,
			Setting:  key.Setting,
		})
	}

	c.emit(MatchCreated{
		MatchID:   matchID,
		Mode:      key.Mode,
		Setting:   key.Setting,
		Text:      session.Text,
		Players:   players,
		CreatedAt: now,
	})

	session.Phase = PhaseCountdown
	session.Countdown = c.settings.CountdownFrom
	c.schedule(timerKey{MatchID: matchID, Purpose: timerCountdown}, c.settings.Tick)
}

// handleCountdownTick broadcasts the current count, then decrements. Once the
// count passes zero the text is released and the abort window opens.
func (c *Coordinator) handleCountdownTick(s *Session) {
	if s.Phase != PhaseCountdown {
		return
	}

	c.delivery.ToRoom(s.ID, PreGameCountdown{Countdown: s.Countdown})
	s.Countdown--
	if s.Countdown >= 0 {
		c.schedule(timerKey{MatchID: s.ID, Purpose: timerCountdown}, c.settings.Tick)
		return
	}

	s.Phase = PhaseAwaitingStart
	c.delivery.ToRoom(s.ID, GameStart{})
	c.schedule(timerKey{MatchID: s.ID, Purpose: timerAbort}, c.settings.AbortWindow)
}

func (c *Coordinator) handleAbortTimeout(s *Session) {
	if s.Phase != PhaseAwaitingStart {
		return
	}

	s.Phase = PhaseAborted
	log.WithField("match_id", s.ID).Info("Match aborted, neither player started")

	c.delivery.ToRoom(s.ID, MatchAborted{Message: abortMessage})
	c.cancelMatchTimers(s.ID)
	delete(c.state.Sessions, s.ID)
	c.delivery.Release(s.ID)

	c.emit(MatchCancelled{MatchID: s.ID, Reason: "no player started", At: c.clock.Now()})
}

// memberSession looks up a live session the player belongs to.
func (c *Coordinator) memberSession(matchID, playerID string) (*Session, error) {
	s := c.state.Sessions[matchID]
	if s == nil {
		return nil, ErrMatchNotFound
	}
	if _, ok := s.Member(playerID); !ok {
		return nil, ErrNotInMatch
	}
	return s, nil
}

func (c *Coordinator) handleStartedTyping(cmd PlayerStartedTyping) error {
	s, err := c.memberSession(cmd.MatchID, cmd.Player.ID)
	if err != nil {
		return err
	}

	if s.Phase == PhaseRunning || s.Phase == PhaseAwaitingFinish {
		s.Started[cmd.Player.ID] = true
		return nil
	}
	if s.Phase != PhaseAwaitingStart {
		log.WithFields(log.Fields{
			"match_id": s.ID,
			"phase":    s.Phase,
		}).Debug("Start signal before gameStart ignored")
		return nil
	}

	s.Started[cmd.Player.ID] = true
	c.cancelTimer(timerKey{MatchID: s.ID, Purpose: timerAbort})
	s.Phase = PhaseRunning
	s.StartedAt = c.clock.Now()

	log.WithFields(log.Fields{
		"match_id": s.ID,
		"player":   cmd.Player.Username,
	}).Info("Match running")

	if s.Mode == ModeTime {
		c.schedule(timerKey{MatchID: s.ID, Purpose: timerClock}, c.settings.Tick)
	} else {
		c.schedule(timerKey{MatchID: s.ID, Purpose: timerCeiling}, c.settings.MaxDuration)
	}
	return nil
}

// handleClockTick sends the remaining whole seconds. At zero the room gets
// gameOver and the settle delay starts.
func (c *Coordinator) handleClockTick(s *Session) {
	if s.Phase != PhaseRunning {
		return
	}

	elapsed := c.clock.Since(s.StartedAt).Seconds()
	remaining := int(math.Max(0, math.Round(float64(s.Setting)-elapsed)))
	c.delivery.ToRoom(s.ID, TimerUpdate{RemainingTime: remaining})

	if remaining > 0 {
		c.schedule(timerKey{MatchID: s.ID, Purpose: timerClock}, c.settings.Tick)
		return
	}

	s.Phase = PhaseAwaitingFinish
	c.delivery.ToRoom(s.ID, GameOver{})
	c.schedule(timerKey{MatchID: s.ID, Purpose: timerSettle}, c.settings.SettleDelay)
}

func (c *Coordinator) handleProgress(cmd PlayerProgress) {
	s := c.state.Sessions[cmd.MatchID]
	if s == nil {
		return
	}
	opponent, ok := s.Opponent(cmd.Player.ID)
	if !ok {
		return
	}
	c.delivery.ToRoomMember(s.ID, opponent.ID, OpponentProgress{
		PlayerID: cmd.Player.ID,
		Progress: cmd.Progress,
	})
}

func (c *Coordinator) handleFinished(cmd PlayerFinished) error {
	s := c.state.Sessions[cmd.MatchID]
	if s == nil {
		return ErrMatchNotFound
	}
	if _, ok := s.Member(cmd.Player.ID); !ok {
		log.WithFields(log.Fields{
			"match_id":  s.ID,
			"player_id": cmd.Player.ID,
		}).Warn("Finish from non-member ignored")
		return nil
	}
	if s.Phase != PhaseRunning && s.Phase != PhaseAwaitingFinish {
		return ErrMatchNotRunning
	}

	// A repeated finish overwrites the earlier stats.
	s.Finished[cmd.Player.ID] = NewStats(cmd.WPM, cmd.Accuracy)

	log.WithFields(log.Fields{
		"match_id": s.ID,
		"player":   cmd.Player.Username,
		"wpm":      cmd.WPM,
		"accuracy": cmd.Accuracy,
	}).Info("Player finished")

	if s.Mode != ModeWords {
		return nil
	}
	if s.allFinished() {
		c.resolve(s, "both players finished")
		return nil
	}
	if s.Phase == PhaseRunning {
		s.Phase = PhaseAwaitingFinish
		c.cancelTimer(timerKey{MatchID: s.ID, Purpose: timerCeiling})
		c.schedule(timerKey{MatchID: s.ID, Purpose: timerGrace}, c.settings.GraceWindow)
	}
	return nil
}

func (c *Coordinator) handleRequestResults(cmd RequestResults) error {
	s := c.state.Sessions[cmd.MatchID]
	if s == nil {
		return ErrMatchGone
	}
	if _, ok := s.Member(cmd.Player.ID); !ok {
		return ErrNotInMatch
	}
	if s.Phase == PhaseAwaitingFinish && s.allFinished() {
		c.resolve(s, "results requested")
	}
	return nil
}
