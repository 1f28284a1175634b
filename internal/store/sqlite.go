package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by writes that target a row that does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; result writes and recorder writes would otherwise hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			is_guest INTEGER NOT NULL DEFAULT 0,
			rating INTEGER NOT NULL DEFAULT 1200,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_rating ON users(rating DESC)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			mode TEXT NOT NULL,
			setting INTEGER NOT NULL,
			status TEXT NOT NULL,
			winner_id TEXT REFERENCES users(id),
			created_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS match_players (
			match_id TEXT NOT NULL REFERENCES matches(id),
			user_id TEXT NOT NULL REFERENCES users(id),
			wpm REAL,
			accuracy REAL,
			final_score INTEGER,
			old_rating INTEGER,
			new_rating INTEGER,
			PRIMARY KEY (match_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_players_user ON match_players(user_id)`,
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL REFERENCES users(id),
			endpoint TEXT NOT NULL UNIQUE,
			p256dh TEXT NOT NULL,
			auth TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetUser retrieves a user by id. A missing user is (nil, nil).
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, is_guest, rating, created_at, updated_at
		 FROM users WHERE id = ?`, userID).Scan(
		&user.ID, &user.Username, &user.IsGuest,
		&user.Rating, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user. Rating 0 means DefaultRating.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.Rating == 0 {
		user.Rating = DefaultRating
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, is_guest, rating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.IsGuest, user.Rating, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// UpsertUser creates a user or updates the username of an existing one.
// The rating of an existing user is never touched.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) error {
	if user.Rating == 0 {
		user.Rating = DefaultRating
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, is_guest, rating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 	username = excluded.username,
		 	updated_at = excluded.updated_at`,
		user.ID, user.Username, user.IsGuest, user.Rating, now, now,
	)
	return err
}

func (s *SQLiteStore) UpdateUserRating(ctx context.Context, userID string, rating int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET rating = ?, updated_at = ? WHERE id = ?`,
		rating, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// CreateMatch records a freshly paired match. Calling it again for the same
// id is a no-op, so it can race with SaveMatchResult in either order.
func (s *SQLiteStore) CreateMatch(ctx context.Context, match *Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status := match.Status
	if status == "" {
		status = MatchStatusInProgress
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO matches (id, text, mode, setting, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		match.ID, match.Text, match.Mode, match.Setting, status, match.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	for _, p := range match.Players {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_players (match_id, user_id) VALUES (?, ?)
			 ON CONFLICT(match_id, user_id) DO NOTHING`,
			match.ID, p.UserID,
		); err != nil {
			return fmt.Errorf("insert match player %s: %w", p.UserID, err)
		}
	}

	return tx.Commit()
}

// MarkMatchAborted flags an in-progress match as aborted.
func (s *SQLiteStore) MarkMatchAborted(ctx context.Context, matchID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		MatchStatusAborted, at.UTC(), matchID, MatchStatusInProgress,
	)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// SaveMatchResult writes both new ratings, the match outcome and the per-player
// results in one transaction. Nothing is written if any step fails.
func (s *SQLiteStore) SaveMatchResult(ctx context.Context, result *MatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	endedAt := result.EndedAt.UTC()

	for _, p := range result.Players {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET rating = ?, updated_at = ? WHERE id = ?`,
			p.NewRating, endedAt, p.UserID,
		)
		if err != nil {
			return fmt.Errorf("update rating for %s: %w", p.UserID, err)
		}
		if err := expectRow(res); err != nil {
			return fmt.Errorf("update rating for %s: %w", p.UserID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO matches (id, text, mode, setting, status, winner_id, created_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 	status = excluded.status,
		 	winner_id = excluded.winner_id,
		 	ended_at = excluded.ended_at`,
		result.MatchID, result.Text, result.Mode, result.Setting,
		MatchStatusCompleted, result.WinnerID, result.CreatedAt.UTC(), endedAt,
	); err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}

	for _, p := range result.Players {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_players (match_id, user_id, wpm, accuracy, final_score, old_rating, new_rating)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(match_id, user_id) DO UPDATE SET
			 	wpm = excluded.wpm,
			 	accuracy = excluded.accuracy,
			 	final_score = excluded.final_score,
			 	old_rating = excluded.old_rating,
			 	new_rating = excluded.new_rating`,
			result.MatchID, p.UserID, p.WPM, p.Accuracy, p.FinalScore, p.OldRating, p.NewRating,
		); err != nil {
			return fmt.Errorf("upsert match player %s: %w", p.UserID, err)
		}
	}

	return tx.Commit()
}

// GetMatch retrieves a match with its players. A missing match is (nil, nil).
func (s *SQLiteStore) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	var (
		match    Match
		winnerID sql.NullString
		endedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, mode, setting, status, winner_id, created_at, ended_at
		 FROM matches WHERE id = ?`, matchID).Scan(
		&match.ID, &match.Text, &match.Mode, &match.Setting,
		&match.Status, &winnerID, &match.CreatedAt, &endedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if winnerID.Valid {
		match.WinnerID = &winnerID.String
	}
	if endedAt.Valid {
		match.EndedAt = &endedAt.Time
	}

	players, err := s.getMatchPlayers(ctx, matchID)
	if err != nil {
		return nil, err
	}
	match.Players = players
	return &match, nil
}

func (s *SQLiteStore) getMatchPlayers(ctx context.Context, matchID string) ([]MatchPlayer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mp.user_id, u.username, u.rating,
		        mp.wpm, mp.accuracy, mp.final_score, mp.old_rating, mp.new_rating
		 FROM match_players mp
		 JOIN users u ON u.id = mp.user_id
		 WHERE mp.match_id = ?
		 ORDER BY mp.rowid`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []MatchPlayer
	for rows.Next() {
		var (
			p                                MatchPlayer
			wpm, accuracy                    sql.NullFloat64
			finalScore, oldRating, newRating sql.NullInt64
		)
		if err := rows.Scan(&p.UserID, &p.Username, &p.Rating,
			&wpm, &accuracy, &finalScore, &oldRating, &newRating); err != nil {
			return nil, err
		}
		p.WPM = nullFloat(wpm)
		p.Accuracy = nullFloat(accuracy)
		p.FinalScore = nullInt(finalScore)
		p.OldRating = nullInt(oldRating)
		p.NewRating = nullInt(newRating)
		players = append(players, p)
	}
	return players, rows.Err()
}

// ListRecentMatches returns the user's latest matches, newest first.
func (s *SQLiteStore) ListRecentMatches(ctx context.Context, userID string, limit int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.text, m.mode, m.setting, m.status, m.winner_id, m.created_at, m.ended_at
		 FROM matches m
		 JOIN match_players mp ON mp.match_id = m.id
		 WHERE mp.user_id = ?
		 ORDER BY m.created_at DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for rows.Next() {
		var (
			m        Match
			winnerID sql.NullString
			endedAt  sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.Text, &m.Mode, &m.Setting,
			&m.Status, &winnerID, &m.CreatedAt, &endedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if winnerID.Valid {
			m.WinnerID = &winnerID.String
		}
		if endedAt.Valid {
			m.EndedAt = &endedAt.Time
		}
		matches = append(matches, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Players are loaded after the cursor is closed; the pool holds one connection.
	for i := range matches {
		players, err := s.getMatchPlayers(ctx, matches[i].ID)
		if err != nil {
			return nil, err
		}
		matches[i].Players = players
	}
	return matches, nil
}

// GetLeaderboard returns users by rating with their completed-match record.
func (s *SQLiteStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.rating,
		        COALESCE(SUM(CASE WHEN m.winner_id = u.id THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN m.winner_id IS NOT NULL AND m.winner_id != u.id THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN m.id IS NOT NULL AND m.winner_id IS NULL THEN 1 ELSE 0 END), 0),
		        COUNT(m.id)
		 FROM users u
		 LEFT JOIN match_players mp ON mp.user_id = u.id
		 LEFT JOIN matches m ON m.id = mp.match_id AND m.status = ?
		 GROUP BY u.id, u.username, u.rating
		 ORDER BY u.rating DESC, u.username ASC
		 LIMIT ?`, MatchStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Rating,
			&e.Wins, &e.Losses, &e.Draws, &e.Total); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SavePushSubscription stores a subscription, replacing any with the same endpoint.
func (s *SQLiteStore) SavePushSubscription(ctx context.Context, sub *PushSubscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		 	user_id = excluded.user_id,
		 	p256dh = excluded.p256dh,
		 	auth = excluded.auth`,
		sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) GetPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var sub PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint,
			&sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
