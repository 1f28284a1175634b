package coordinator

import (
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

type timerPurpose int

const (
	timerCountdown timerPurpose = iota // pre-game countdown tick
	timerAbort                         // nobody started typing
	timerClock                         // timed-mode clock tick
	timerGrace                         // word mode, waiting on the second finisher
	timerSettle                        // timed mode, lets final stats arrive after time-up
	timerCeiling                       // word mode, caps how long a running race may last
)

var timerPurposes = []timerPurpose{timerCountdown, timerAbort, timerClock, timerGrace, timerSettle, timerCeiling}

func (p timerPurpose) String() string {
	switch p {
	case timerCountdown:
		return "countdown"
	case timerAbort:
		return "abort"
	case timerClock:
		return "clock"
	case timerGrace:
		return "grace"
	case timerSettle:
		return "settle"
	case timerCeiling:
		return "ceiling"
	default:
		return "unknown"
	}
}

type timerKey struct {
	MatchID string
	Purpose timerPurpose
}

type armedTimer struct {
	seq   uint64
	timer clockwork.Timer
	stop  chan struct{}
}

// schedule arms the timer for key, replacing any timer already armed for it.
// When it fires, a timerFired command carrying its sequence number is queued.
func (c *Coordinator) schedule(key timerKey, d time.Duration) {
	c.cancelTimer(key)

	c.timerSeq++
	t := &armedTimer{
		seq:   c.timerSeq,
		timer: c.clock.NewTimer(d),
		stop:  make(chan struct{}),
	}
	c.timers[key] = t

	go func() {
		select {
		case <-t.timer.Chan():
			c.Send(timerFired{Key: key, Seq: t.seq})
		case <-t.stop:
		}
	}()
}

func (c *Coordinator) cancelTimer(key timerKey) {
	t, ok := c.timers[key]
	if !ok {
		return
	}
	t.timer.Stop()
	close(t.stop)
	delete(c.timers, key)
}

func (c *Coordinator) cancelMatchTimers(matchID string) {
	for _, purpose := range timerPurposes {
		c.cancelTimer(timerKey{MatchID: matchID, Purpose: purpose})
	}
}

func (c *Coordinator) cancelAllTimers() {
	for key := range c.timers {
		c.cancelTimer(key)
	}
}

func (c *Coordinator) handleTimerFired(cmd timerFired) {
	t, ok := c.timers[cmd.Key]
	if !ok || t.seq != cmd.Seq {
		log.WithFields(log.Fields{
			"match_id": cmd.Key.MatchID,
			"timer":    cmd.Key.Purpose,
		}).Debug("Ignoring stale timer")
		return
	}
	delete(c.timers, cmd.Key)

	session := c.state.Sessions[cmd.Key.MatchID]
	if session == nil {
		return
	}

	switch cmd.Key.Purpose {
	case timerCountdown:
		c.handleCountdownTick(session)
	case timerAbort:
		c.handleAbortTimeout(session)
	case timerClock:
		c.handleClockTick(session)
	case timerGrace:
		if session.Phase == PhaseAwaitingFinish {
			c.resolve(session, "grace window elapsed")
		}
	case timerSettle:
		if session.Phase == PhaseAwaitingFinish {
			c.resolve(session, "time up")
		}
	case timerCeiling:
		if session.Phase == PhaseRunning || session.Phase == PhaseAwaitingFinish {
			c.resolve(session, "run ceiling reached")
		}
	}
}
