package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/store"
	"github.com/edvart/typeduel/internal/words"
)

// persistTimeout bounds each off-loop storage call.
const persistTimeout = 10 * time.Second

// Delivery sends wire messages to connections and match rooms.
// Implementations must be safe for concurrent use.
type Delivery interface {
	ToConn(connID string, msg Message)
	ToRoom(matchID string, msg Message)
	// ToRoomMember sends only to the connections of playerID that joined the room.
	ToRoomMember(matchID, playerID string, msg Message)
	Join(connID, matchID string)
	Release(matchID string)
}

// Store is the persistence the coordinator needs while resolving matches.
type Store interface {
	GetUser(ctx context.Context, userID string) (*store.User, error)
	GetMatch(ctx context.Context, matchID string) (*store.Match, error)
	SaveMatchResult(ctx context.Context, result *store.MatchResult) error
}

// TextSource produces the text for a new match.
type TextSource func(mode Mode, setting int) string

func defaultText(mode Mode, setting int) string {
	return words.Generate(words.CountFor(mode == ModeTime, setting))
}

type Config struct {
	Settings Settings
	Clock    clockwork.Clock
	Text     TextSource
}

// Coordinator owns all mutable state and processes commands sequentially.
type Coordinator struct {
	commands    chan Command
	done        chan struct{}
	subscribers []chan Event
	state       *State
	timers      map[timerKey]*armedTimer
	timerSeq    uint64
	settings    Settings
	clock       clockwork.Clock
	text        TextSource
	delivery    Delivery
	store       Store
	inflight    sync.WaitGroup
}

// New creates a new Coordinator.
func New(cfg Config, delivery Delivery, st Store) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Text == nil {
		cfg.Text = defaultText
	}
	return &Coordinator{
		commands:    make(chan Command, 256),
		done:        make(chan struct{}),
		subscribers: make([]chan Event, 0),
		state:       NewState(),
		timers:      make(map[timerKey]*armedTimer),
		settings:    cfg.Settings.withDefaults(),
		clock:       cfg.Clock,
		text:        cfg.Text,
		delivery:    delivery,
		store:       st,
	}
}

// Send submits a command to the coordinator. It never blocks after Run has returned.
func (c *Coordinator) Send(cmd Command) {
	select {
	case c.commands <- cmd:
	case <-c.done:
	}
}

// Subscribe creates a new event channel for a consumer.
// It must be called before Run.
func (c *Coordinator) Subscribe() <-chan Event {
	ch := make(chan Event, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Run starts the coordinator loop. It blocks until ctx is cancelled and any
// in-flight result writes have finished.
func (c *Coordinator) Run(ctx context.Context) {
	log.Info("Coordinator started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Coordinator shutting down")
			c.cancelAllTimers()
			close(c.done)
			c.inflight.Wait()
			return
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		}
	}
}

func (c *Coordinator) emit(e Event) {
	for _, ch := range c.subscribers {
		select {
		case ch <- e:
		default:
			log.Warnf("Subscriber event channel full, dropping %T", e)
		}
	}
}

func (c *Coordinator) handleCommand(cmd Command) {
	switch cmd := cmd.(type) {
	case FindMatch:
		c.reply(cmd.Player.ConnID, c.handleFindMatch(cmd))
	case JoinMatchRoom:
		c.handleJoinMatchRoom(cmd)
	case GetMatchData:
		c.reply(cmd.Player.ConnID, c.handleGetMatchData(cmd))
	case PlayerStartedTyping:
		c.reply(cmd.Player.ConnID, c.handleStartedTyping(cmd))
	case PlayerProgress:
		c.handleProgress(cmd)
	case PlayerFinished:
		c.reply(cmd.Player.ConnID, c.handleFinished(cmd))
	case RequestResults:
		c.reply(cmd.Player.ConnID, c.handleRequestResults(cmd))
	case Disconnect:
		c.handleDisconnect(cmd)
	case Reject:
		c.delivery.ToConn(cmd.ConnID, MatchError{Message: cmd.Message})
	case AdminKickFromQueue:
		cmd.Response <- c.handleAdminKickFromQueue(cmd)
	case timerFired:
		c.handleTimerFired(cmd)
	case getStateCmd:
		cmd.Response <- c.snapshot()
	}
}

// reply turns a handler error into a matchError for the requesting connection.
func (c *Coordinator) reply(connID string, err error) {
	if err == nil {
		return
	}
	c.delivery.ToConn(connID, MatchError{Message: ClientMessage(err)})
}

func (c *Coordinator) handleFindMatch(cmd FindMatch) error {
	key := QueueKey{Mode: cmd.Mode, Setting: cmd.Setting}
	if err := c.settings.checkKey(key); err != nil {
		return err
	}

	if c.state.PlayerSession(cmd.Player.ID) != nil {
		return ErrAlreadyInMatch
	}

	pair, paired, err := c.state.Queue.Enqueue(key, QueueEntry{Player: cmd.Player, JoinedAt: c.clock.Now()})
	if errors.Is(err, ErrAlreadyQueued) {
		log.WithField("player_id", cmd.Player.ID).Debug("Duplicate findMatch ignored")
		return nil
	}

	if paired {
		c.startMatch(key, [2]Player{pair[0].Player, pair[1].Player})
		return nil
	}

	log.WithFields(log.Fields{
		"player": cmd.Player.Username,
		"queue":  key.String(),
		"size":   c.state.Queue.Len(key),
	}).Info("Player joined queue")
	return nil
}

func (c *Coordinator) handleJoinMatchRoom(cmd JoinMatchRoom) {
	c.delivery.Join(cmd.Player.ConnID, cmd.MatchID)
	if s := c.state.Sessions[cmd.MatchID]; s != nil {
		if _, ok := s.Member(cmd.Player.ID); ok {
			s.Conns[cmd.Player.ID] = cmd.Player.ConnID
		}
	}
}

// handleDisconnect drops the connection's queue entry. A running match whose
// members have all left is resolved with what it has.
func (c *Coordinator) handleDisconnect(cmd Disconnect) {
	if _, entry, ok := c.state.Queue.Find(cmd.Player.ID); ok && entry.Player.ConnID == cmd.Player.ConnID {
		c.state.Queue.Remove(cmd.Player.ID)
		log.WithField("player", cmd.Player.Username).Info("Player left queue on disconnect")
	}

	s := c.state.PlayerSession(cmd.Player.ID)
	if s == nil || s.Conns[cmd.Player.ID] != cmd.Player.ConnID {
		return
	}
	delete(s.Conns, cmd.Player.ID)
	if len(s.Conns) == 0 && (s.Phase == PhaseRunning || s.Phase == PhaseAwaitingFinish) {
		c.resolve(s, "both players left")
	}
}

// handleAdminKickFromQueue removes a player from the queue.
func (c *Coordinator) handleAdminKickFromQueue(cmd AdminKickFromQueue) error {
	if !c.state.Queue.Remove(cmd.PlayerID) {
		return ErrNotQueued
	}
	log.WithField("player_id", cmd.PlayerID).Info("Admin kicked player from queue")
	return nil
}

// Snapshot is a copy of the coordinator state, safe to use from any goroutine.
type Snapshot struct {
	Queues       map[string][]QueueEntry `json:"queues"`
	QueueSize    int                     `json:"queueSize"`
	Sessions     []SessionSummary        `json:"sessions"`
	ActiveTimers int                     `json:"activeTimers"`
}

type SessionSummary struct {
	MatchID   string    `json:"matchId"`
	Mode      Mode      `json:"mode"`
	Setting   int       `json:"setting"`
	Phase     string    `json:"phase"`
	Players   [2]Player `json:"players"`
	Started   int       `json:"started"`
	Finished  int       `json:"finished"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Coordinator) snapshot() Snapshot {
	snap := Snapshot{
		Queues:       make(map[string][]QueueEntry),
		QueueSize:    c.state.Queue.Size(),
		Sessions:     make([]SessionSummary, 0, len(c.state.Sessions)),
		ActiveTimers: len(c.timers),
	}
	for key, bucket := range c.state.Queue.Buckets() {
		snap.Queues[key.String()] = bucket
	}
	for _, s := range c.state.Sessions {
		snap.Sessions = append(snap.Sessions, SessionSummary{
			MatchID:   s.ID,
			Mode:      s.Mode,
			Setting:   s.Setting,
			Phase:     s.Phase.String(),
			Players:   s.Players,
			Started:   len(s.Started),
			Finished:  len(s.Finished),
			CreatedAt: s.CreatedAt,
		})
	}
	sort.Slice(snap.Sessions, func(i, j int) bool {
		return snap.Sessions[i].CreatedAt.Before(snap.Sessions[j].CreatedAt)
	})
	return snap
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	respCh := make(chan Snapshot, 1)
	select {
	case c.commands <- getStateCmd{Response: respCh}:
	case <-c.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-respCh:
		return snap, nil
	case <-c.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
