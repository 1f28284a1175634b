package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/edvart/typeduel/internal/coordinator"
)

type fakeConn struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) published() []*nats.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*nats.Msg(nil), f.msgs...)
}

func TestPublishSubjects(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	winner := "a"
	events := []struct {
		event   coordinator.Event
		subject string
	}{
		{coordinator.MatchCreated{MatchID: "m1", Mode: coordinator.ModeTime, Setting: 30}, "duel.created"},
		{coordinator.MatchCancelled{MatchID: "m1", Reason: "no player started"}, "duel.aborted"},
		{coordinator.MatchCompleted{MatchID: "m1", Result: coordinator.MatchResult{WinnerID: &winner}}, "duel.completed"},
	}

	conn := &fakeConn{}
	p := NewPublisher(conn, "duel")
	p.now = func() time.Time { return fixed }

	for _, tc := range events {
		if err := p.handleEvent(tc.event); err != nil {
			t.Fatalf("handleEvent(%T): %v", tc.event, err)
		}
	}

	msgs := conn.published()
	if len(msgs) != len(events) {
		t.Fatalf("published %d messages, want %d", len(msgs), len(events))
	}
	for i, tc := range events {
		if msgs[i].Subject != tc.subject {
			t.Errorf("message %d subject = %q, want %q", i, msgs[i].Subject, tc.subject)
		}
		var env Envelope
		if err := json.Unmarshal(msgs[i].Data, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.MatchID != "m1" || env.EventID == "" || !env.Timestamp.Equal(fixed) {
			t.Errorf("envelope %d = %+v", i, env)
		}
		if msgs[i].Header.Get("Event-ID") != env.EventID {
			t.Errorf("header event id %q does not match envelope %q", msgs[i].Header.Get("Event-ID"), env.EventID)
		}
	}
}

func TestCompletedPayloadCarriesWinner(t *testing.T) {
	conn := &fakeConn{}
	winner := "b"
	p := NewPublisher(conn, "")
	err := p.handleEvent(coordinator.MatchCompleted{
		MatchID: "m9",
		Result: coordinator.MatchResult{
			WinnerID: &winner,
			Players: []coordinator.ResultPlayer{
				{ID: "a", FinalScore: 40, OldRating: 1200, NewRating: 1184},
				{ID: "b", FinalScore: 55, OldRating: 1200, NewRating: 1216},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	msg := conn.published()[0]
	if msg.Subject != DefaultSubjectPrefix+".completed" {
		t.Errorf("subject = %q", msg.Subject)
	}
	var env struct {
		Payload struct {
			Result struct {
				WinnerID *string `json:"winnerId"`
			} `json:"result"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Payload.Result.WinnerID == nil || *env.Payload.Result.WinnerID != "b" {
		t.Errorf("winnerId = %v, want b", env.Payload.Result.WinnerID)
	}
}

func TestRunLogsPublishErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	events := make(chan coordinator.Event, 1)
	events <- coordinator.MatchCancelled{MatchID: "m1"}
	close(events)

	done := make(chan struct{})
	go func() {
		NewPublisher(conn, "duel").Run(context.Background(), events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if len(conn.published()) != 0 {
		t.Error("nothing should be recorded when publish fails")
	}
}
