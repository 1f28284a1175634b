package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edvart/typeduel/internal/store"
)

const waitTimeout = 2 * time.Second

type delivered struct {
	Kind   string // "conn", "room", "member", "join", "release"
	Target string // conn id or match id
	Member string // player id for "member"
	Msg    Message
}

type fakeDelivery struct {
	ch  chan delivered
	mu  sync.Mutex
	all []delivered
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{ch: make(chan delivered, 1024)}
}

func (d *fakeDelivery) record(x delivered) {
	d.mu.Lock()
	d.all = append(d.all, x)
	d.mu.Unlock()
	d.ch <- x
}

func (d *fakeDelivery) ToConn(connID string, msg Message) {
	d.record(delivered{Kind: "conn", Target: connID, Msg: msg})
}

func (d *fakeDelivery) ToRoom(matchID string, msg Message) {
	d.record(delivered{Kind: "room", Target: matchID, Msg: msg})
}

func (d *fakeDelivery) ToRoomMember(matchID, playerID string, msg Message) {
	d.record(delivered{Kind: "member", Target: matchID, Member: playerID, Msg: msg})
}

func (d *fakeDelivery) Join(connID, matchID string) {
	d.record(delivered{Kind: "join", Target: matchID, Member: connID})
}

func (d *fakeDelivery) Release(matchID string) {
	d.record(delivered{Kind: "release", Target: matchID})
}

// count returns how many messages with the given wire name were delivered so far.
func (d *fakeDelivery) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, x := range d.all {
		if x.Msg != nil && x.Msg.MessageName() == name {
			n++
		}
	}
	return n
}

func (d *fakeDelivery) snapshot() []delivered {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivered(nil), d.all...)
}

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*store.User
	matches map[string]*store.Match
	saved   []*store.MatchResult
	saveErr error
}

func newFakeStore(users ...store.User) *fakeStore {
	s := &fakeStore{
		users:   make(map[string]*store.User),
		matches: make(map[string]*store.Match),
	}
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	return s
}

func (s *fakeStore) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) GetMatch(_ context.Context, id string) (*store.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "broken" {
		return nil, errors.New("disk on fire")
	}
	return s.matches[id], nil
}

func (s *fakeStore) SaveMatchResult(_ context.Context, r *store.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, p := range r.Players {
		s.users[p.UserID].Rating = p.NewRating
	}
	s.saved = append(s.saved, r)
	return nil
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *clockwork.FakeClock
	coord  *Coordinator
	out    *fakeDelivery
	store  *fakeStore
	events <-chan Event
}

var (
	alice = Player{ConnID: "conn-a", ID: "a", Username: "alice", Rating: 1200}
	bob   = Player{ConnID: "conn-b", ID: "b", Username: "bob", Rating: 1200}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClock()
	out := newFakeDelivery()
	st := newFakeStore(
		store.User{ID: "a", Username: "alice", Rating: 1200},
		store.User{ID: "b", Username: "bob", Rating: 1200},
	)
	c := New(Config{
		Settings: DefaultSettings(),
		Clock:    clock,
		Text:     func(Mode, int) string { return "the quick brown fox" },
	}, out, st)
	events := c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{t: t, ctx: ctx, clock: clock, coord: c, out: out, store: st, events: events}
}

// sync returns once every command sent before it has been handled.
func (h *harness) sync() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, waitTimeout)
	defer cancel()
	if _, err := h.coord.Snapshot(ctx); err != nil {
		h.t.Fatalf("sync: %v", err)
	}
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, waitTimeout)
	defer cancel()
	snap, err := h.coord.Snapshot(ctx)
	if err != nil {
		h.t.Fatalf("snapshot: %v", err)
	}
	return snap
}

// tick waits for exactly armed timers, then moves the clock forward by d.
func (h *harness) tick(armed int, d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, waitTimeout)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, armed); err != nil {
		h.t.Fatalf("waiting for %d armed timers: %v", armed, err)
	}
	h.clock.Advance(d)
}

// expect returns the next delivery carrying a message named name, skipping others.
func (h *harness) expect(name string) delivered {
	h.t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case x := <-h.out.ch:
			if x.Msg != nil && x.Msg.MessageName() == name {
				return x
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s", name)
			return delivered{}
		}
	}
}

// expectKind returns the next delivery of the given kind, skipping others.
func (h *harness) expectKind(kind string) delivered {
	h.t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case x := <-h.out.ch:
			if x.Kind == kind {
				return x
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for %s delivery", kind)
			return delivered{}
		}
	}
}

func (h *harness) nextEvent() Event {
	h.t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(waitTimeout):
		h.t.Fatal("timed out waiting for a lifecycle event")
		return nil
	}
}

// pair queues alice and bob for key and returns the new match id.
func (h *harness) pair(mode Mode, setting int) string {
	h.t.Helper()
	h.coord.Send(FindMatch{Player: alice, Mode: mode, Setting: setting})
	h.coord.Send(FindMatch{Player: bob, Mode: mode, Setting: setting})
	found := h.expect("matchFound")
	return found.Msg.(MatchFound).MatchID
}

// runCountdown drives the pre-game countdown through gameStart.
func (h *harness) runCountdown() {
	h.t.Helper()
	for want := 5; want >= 0; want-- {
		h.tick(1, time.Second)
		got := h.expect("preGameCountdown").Msg.(PreGameCountdown)
		if got.Countdown != want {
			h.t.Fatalf("countdown = %d, want %d", got.Countdown, want)
		}
	}
	h.expect("gameStart")
}
