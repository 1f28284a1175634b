package coordinator

import (
	"math"
	"time"
)

type Mode string

const (
	ModeTime  Mode = "time"
	ModeWords Mode = "words"
)

func (m Mode) Valid() bool {
	return m == ModeTime || m == ModeWords
}

// Player is the identity bound to a connection when it authenticated.
type Player struct {
	ConnID   string `json:"-"`
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

type Phase int

const (
	PhasePaired         Phase = iota // Created, countdown not yet armed
	PhaseCountdown                   // Pre-game countdown ticking
	PhaseAwaitingStart               // Text revealed, nobody has typed
	PhaseRunning                     // At least one player is typing
	PhaseAwaitingFinish              // Waiting on the second finisher or the time-up settle
	PhaseResolved
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhasePaired:
		return "paired"
	case PhaseCountdown:
		return "countdown"
	case PhaseAwaitingStart:
		return "awaiting_start"
	case PhaseRunning:
		return "running"
	case PhaseAwaitingFinish:
		return "awaiting_finish"
	case PhaseResolved:
		return "resolved"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Stats is one player's reported result.
type Stats struct {
	WPM        float64 `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	FinalScore int     `json:"finalScore"`
}

// NewStats derives the final score, round(wpm * accuracy / 100).
func NewStats(wpm, accuracy float64) Stats {
	return Stats{
		WPM:        wpm,
		Accuracy:   accuracy,
		FinalScore: int(math.Floor(wpm*accuracy/100 + 0.5)),
	}
}

// Session is one live duel.
type Session struct {
	ID        string
	Mode      Mode
	Setting   int
	Text      string
	Players   [2]Player
	Phase     Phase
	Countdown int
	CreatedAt time.Time
	StartedAt time.Time
	Started   map[string]bool
	Finished  map[string]Stats
	// Conns maps each member still in the room to its connection.
	Conns map[string]string
}

func newSession(id string, key QueueKey, text string, players [2]Player, now time.Time) *Session {
	return &Session{
		ID:        id,
		Mode:      key.Mode,
		Setting:   key.Setting,
		Text:      text,
		Players:   players,
		Phase:     PhasePaired,
		CreatedAt: now,
		Started:   make(map[string]bool),
		Finished:  make(map[string]Stats),
		Conns: map[string]string{
			players[0].ID: players[0].ConnID,
			players[1].ID: players[1].ConnID,
		},
	}
}

func (s *Session) Member(playerID string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

// Opponent returns the other player. ok is false if playerID is not a member.
func (s *Session) Opponent(playerID string) (Player, bool) {
	switch playerID {
	case s.Players[0].ID:
		return s.Players[1], true
	case s.Players[1].ID:
		return s.Players[0], true
	}
	return Player{}, false
}

func (s *Session) allFinished() bool {
	for _, p := range s.Players {
		if _, ok := s.Finished[p.ID]; !ok {
			return false
		}
	}
	return true
}

// statsFor returns the recorded stats, or zero stats for a player who never finished.
func (s *Session) statsFor(playerID string) Stats {
	return s.Finished[playerID]
}

// State is owned by the coordinator goroutine and never touched from elsewhere.
type State struct {
	Queue    *Queue
	Sessions map[string]*Session
}

func NewState() *State {
	return &State{
		Queue:    NewQueue(),
		Sessions: make(map[string]*Session),
	}
}

func (s *State) PlayerSession(playerID string) *Session {
	for _, session := range s.Sessions {
		if _, ok := session.Member(playerID); ok {
			return session
		}
	}
	return nil
}
