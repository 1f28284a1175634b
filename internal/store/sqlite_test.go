package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mustCreateUser(t *testing.T, st *SQLiteStore, id, name string) {
	t.Helper()
	if err := st.CreateUser(context.Background(), &User{ID: id, Username: name}); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
}

func TestUserLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	got, err := st.GetUser(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("GetUser(missing) = %v, %v; want nil, nil", got, err)
	}

	mustCreateUser(t, st, "u1", "alice")
	got, err = st.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "alice" || got.Rating != DefaultRating {
		t.Errorf("got %+v, want alice rated %d", got, DefaultRating)
	}

	if err := st.CreateUser(ctx, &User{ID: "u2", Username: "alice"}); err == nil {
		t.Error("duplicate username should fail")
	}

	if err := st.UpdateUserRating(ctx, "u1", 1300); err != nil {
		t.Fatalf("UpdateUserRating: %v", err)
	}
	if err := st.UpsertUser(ctx, &User{ID: "u1", Username: "alice2"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	got, _ = st.GetUser(ctx, "u1")
	if got.Username != "alice2" || got.Rating != 1300 {
		t.Errorf("after upsert got %+v; want alice2 keeping rating 1300", got)
	}

	if err := st.UpdateUserRating(ctx, "nobody", 1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateUserRating(nobody) = %v, want ErrNotFound", err)
	}
}

func TestSaveMatchResult(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, st, "a", "alice")
	mustCreateUser(t, st, "b", "bob")

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := st.CreateMatch(ctx, &Match{
		ID: "m1", Text: "the quick fox", Mode: "words", Setting: 3, CreatedAt: created,
		Players: []MatchPlayer{{UserID: "a"}, {UserID: "b"}},
	})
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}

	winner := "a"
	err = st.SaveMatchResult(ctx, &MatchResult{
		MatchID: "m1", Text: "the quick fox", Mode: "words", Setting: 3,
		WinnerID: &winner, CreatedAt: created, EndedAt: created.Add(time.Minute),
		Players: []PlayerResult{
			{UserID: "a", WPM: 80, Accuracy: 95, FinalScore: 76, OldRating: 1200, NewRating: 1216},
			{UserID: "b", OldRating: 1200, NewRating: 1184},
		},
	})
	if err != nil {
		t.Fatalf("SaveMatchResult: %v", err)
	}

	m, err := st.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if m.Status != MatchStatusCompleted || m.WinnerID == nil || *m.WinnerID != "a" {
		t.Errorf("match = %+v, want completed with winner a", m)
	}
	if len(m.Players) != 2 {
		t.Fatalf("got %d players, want 2", len(m.Players))
	}
	alice := m.Players[0]
	if alice.FinalScore == nil || *alice.FinalScore != 76 || alice.NewRating == nil || *alice.NewRating != 1216 {
		t.Errorf("alice result = %+v", alice)
	}
	if alice.Rating != 1216 {
		t.Errorf("alice current rating = %d, want 1216", alice.Rating)
	}

	b, _ := st.GetUser(ctx, "b")
	if b.Rating != 1184 {
		t.Errorf("bob rating = %d, want 1184", b.Rating)
	}
}

func TestSaveMatchResultIsAtomic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, st, "a", "alice")

	err := st.SaveMatchResult(ctx, &MatchResult{
		MatchID: "m1", Text: "x", Mode: "time", Setting: 15,
		CreatedAt: time.Now(), EndedAt: time.Now(),
		Players: []PlayerResult{
			{UserID: "a", OldRating: 1200, NewRating: 1250},
			{UserID: "ghost", OldRating: 1200, NewRating: 1150},
		},
	})
	if err == nil {
		t.Fatal("expected an error for a missing user")
	}

	a, _ := st.GetUser(ctx, "a")
	if a.Rating != 1200 {
		t.Errorf("alice rating = %d after failed save, want 1200", a.Rating)
	}
	if m, _ := st.GetMatch(ctx, "m1"); m != nil {
		t.Errorf("match was written by a failed save: %+v", m)
	}
}

func TestCreateMatchIsIdempotentAfterResult(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, st, "a", "alice")
	mustCreateUser(t, st, "b", "bob")

	now := time.Now()
	err := st.SaveMatchResult(ctx, &MatchResult{
		MatchID: "m1", Text: "x", Mode: "time", Setting: 15, CreatedAt: now, EndedAt: now,
		Players: []PlayerResult{
			{UserID: "a", OldRating: 1200, NewRating: 1200},
			{UserID: "b", OldRating: 1200, NewRating: 1200},
		},
	})
	if err != nil {
		t.Fatalf("SaveMatchResult: %v", err)
	}

	err = st.CreateMatch(ctx, &Match{
		ID: "m1", Text: "x", Mode: "time", Setting: 15, CreatedAt: now,
		Players: []MatchPlayer{{UserID: "a"}, {UserID: "b"}},
	})
	if err != nil {
		t.Fatalf("late CreateMatch: %v", err)
	}

	m, _ := st.GetMatch(ctx, "m1")
	if m.Status != MatchStatusCompleted || m.WinnerID != nil {
		t.Errorf("late CreateMatch overwrote result: %+v", m)
	}
}

func TestMarkMatchAborted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, st, "a", "alice")
	mustCreateUser(t, st, "b", "bob")

	err := st.CreateMatch(ctx, &Match{
		ID: "m1", Text: "x", Mode: "words", Setting: 10, CreatedAt: time.Now(),
		Players: []MatchPlayer{{UserID: "a"}, {UserID: "b"}},
	})
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if err := st.MarkMatchAborted(ctx, "m1", time.Now()); err != nil {
		t.Fatalf("MarkMatchAborted: %v", err)
	}
	m, _ := st.GetMatch(ctx, "m1")
	if m.Status != MatchStatusAborted || m.EndedAt == nil {
		t.Errorf("match = %+v, want aborted with end time", m)
	}
	if err := st.MarkMatchAborted(ctx, "m1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second abort = %v, want ErrNotFound", err)
	}
}

func TestLeaderboardAndRecentMatches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, st, "a", "alice")
	mustCreateUser(t, st, "b", "bob")
	mustCreateUser(t, st, "c", "carol")

	winner := "b"
	now := time.Now()
	err := st.SaveMatchResult(ctx, &MatchResult{
		MatchID: "m1", Text: "x", Mode: "words", Setting: 10,
		WinnerID: &winner, CreatedAt: now, EndedAt: now,
		Players: []PlayerResult{
			{UserID: "a", OldRating: 1200, NewRating: 1184},
			{UserID: "b", OldRating: 1200, NewRating: 1216},
		},
	})
	if err != nil {
		t.Fatalf("SaveMatchResult: %v", err)
	}

	board, err := st.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("got %d entries, want 3", len(board))
	}
	if board[0].UserID != "b" || board[0].Wins != 1 || board[0].Total != 1 {
		t.Errorf("first entry = %+v, want bob with one win", board[0])
	}
	if board[2].UserID != "a" || board[2].Losses != 1 {
		t.Errorf("last entry = %+v, want alice with one loss", board[2])
	}

	recent, err := st.ListRecentMatches(ctx, "a", 5)
	if err != nil {
		t.Fatalf("ListRecentMatches: %v", err)
	}
	if len(recent) != 1 || len(recent[0].Players) != 2 {
		t.Errorf("recent = %+v, want one match with two players", recent)
	}
}

func TestPushSubscriptions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, st, "a", "alice")

	sub := &PushSubscription{UserID: "a", Endpoint: "https://push.example/1", P256dh: "k", Auth: "s"}
	if err := st.SavePushSubscription(ctx, sub); err != nil {
		t.Fatalf("SavePushSubscription: %v", err)
	}
	sub.Auth = "s2"
	if err := st.SavePushSubscription(ctx, sub); err != nil {
		t.Fatalf("SavePushSubscription again: %v", err)
	}

	subs, err := st.GetPushSubscriptions(ctx, "a")
	if err != nil {
		t.Fatalf("GetPushSubscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].Auth != "s2" {
		t.Fatalf("subs = %+v, want one updated subscription", subs)
	}

	if err := st.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
		t.Fatalf("DeletePushSubscription: %v", err)
	}
	subs, _ = st.GetPushSubscriptions(ctx, "a")
	if len(subs) != 0 {
		t.Errorf("got %d subscriptions after delete", len(subs))
	}
}
