package store

import (
	"context"
	"time"
)

// DefaultRating is the rating every new account starts with.
const DefaultRating = 1200

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IsGuest   bool      `json:"isGuest"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	MatchStatusInProgress = "in_progress"
	MatchStatusCompleted  = "completed"
	MatchStatusAborted    = "aborted"
)

type Match struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Mode      string        `json:"mode"`
	Setting   int           `json:"setting"`
	Status    string        `json:"status"`
	WinnerID  *string       `json:"winnerId"`
	CreatedAt time.Time     `json:"createdAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
	Players   []MatchPlayer `json:"players"`
}

// MatchPlayer is one participant of a stored match. Result fields stay nil
// until the match completes. Rating is the user's current rating.
type MatchPlayer struct {
	UserID     string   `json:"userId"`
	Username   string   `json:"username"`
	Rating     int      `json:"rating"`
	WPM        *float64 `json:"wpm,omitempty"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	FinalScore *int     `json:"finalScore,omitempty"`
	OldRating  *int     `json:"oldRating,omitempty"`
	NewRating  *int     `json:"newRating,omitempty"`
}

// MatchResult is everything written when a match resolves.
type MatchResult struct {
	MatchID   string
	Text      string
	Mode      string
	Setting   int
	WinnerID  *string
	CreatedAt time.Time
	EndedAt   time.Time
	Players   []PlayerResult
}

type PlayerResult struct {
	UserID     string
	WPM        float64
	Accuracy   float64
	FinalScore int
	OldRating  int
	NewRating  int
}

type LeaderboardEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	Total    int    `json:"total"`
}

type PushSubscription struct {
	ID        int
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

type Store interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpsertUser(ctx context.Context, user *User) error
	UpdateUserRating(ctx context.Context, userID string, rating int) error

	CreateMatch(ctx context.Context, match *Match) error
	MarkMatchAborted(ctx context.Context, matchID string, at time.Time) error
	SaveMatchResult(ctx context.Context, result *MatchResult) error
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	ListRecentMatches(ctx context.Context, userID string, limit int) ([]Match, error)

	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// Push subscriptions
	SavePushSubscription(ctx context.Context, sub *PushSubscription) error
	GetPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error

	Close() error
}
