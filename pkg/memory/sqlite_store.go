package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	message TEXT NOT NULL,
	response TEXT NOT NULL DEFAULT '',
	sentiment REAL NOT NULL DEFAULT 0,
	emotion TEXT NOT NULL DEFAULT 'neutral',
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, id);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	preferences TEXT NOT NULL DEFAULT '',
	interaction_count INTEGER NOT NULL DEFAULT 0,
	first_interaction TEXT NOT NULL,
	last_interaction TEXT NOT NULL,
	emotional_profile TEXT NOT NULL DEFAULT '{}',
	purchase_history TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS user_interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	interaction_type TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '{}',
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON user_interactions(user_id);
`

// SQLiteStore is the default single-file backend.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writes are serialised through a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg Message) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	if msg.Emotion == "" {
		msg.Emotion = "neutral"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, message, response, sentiment, emotion, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.UserID, msg.Text, msg.Response, msg.Sentiment, msg.Emotion, formatTime(ts))
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, message, response, sentiment, emotion, timestamp
		 FROM messages WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m  Message
			id int64
			ts string
		)
		if err := rows.Scan(&id, &m.UserID, &m.Text, &m.Response, &m.Sentiment, &m.Emotion, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ID = strconv.FormatInt(id, 10)
		m.Timestamp = parseTime(ts)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var (
		p                  UserProfile
		first, last        string
		emotional, history string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, preferences, interaction_count, first_interaction, last_interaction,
		        emotional_profile, purchase_history
		 FROM user_profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Name, &p.Preferences, &p.InteractionCount, &first, &last, &emotional, &history)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	p.FirstInteraction = parseTime(first)
	p.LastInteraction = parseTime(last)
	p.EmotionalProfile = json.RawMessage(emotional)
	p.PurchaseHistory = json.RawMessage(history)
	return &p, nil
}

func (s *SQLiteStore) ensureProfile(ctx context.Context, tx *sql.Tx, userID string, now string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, first_interaction, last_interaction) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`, userID, now, now)
	return err
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error {
	if err := update.validate(); err != nil {
		return err
	}

	now := formatTime(s.now())

	sets := []string{"last_interaction = ?"}
	args := []interface{}{now}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Preferences != nil {
		sets = append(sets, "preferences = ?")
		args = append(args, *update.Preferences)
	}
	if update.EmotionalProfile != nil {
		sets = append(sets, "emotional_profile = ?")
		args = append(args, string(update.EmotionalProfile))
	}
	if update.PurchaseHistory != nil {
		sets = append(sets, "purchase_history = ?")
		args = append(args, string(update.PurchaseHistory))
	}
	args = append(args, userID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureProfile(ctx, tx, userID, now); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}

	query := "UPDATE user_profiles SET " + strings.Join(sets, ", ") + " WHERE user_id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) IncrementInteractions(ctx context.Context, userID string) (int, error) {
	now := formatTime(s.now())

	var count int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO user_profiles (user_id, interaction_count, first_interaction, last_interaction)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   interaction_count = interaction_count + 1,
		   last_interaction = excluded.last_interaction
		 RETURNING interaction_count`, userID, now, now).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment interactions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) RecordInteraction(ctx context.Context, interaction Interaction) error {
	ts := interaction.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	if interaction.Type == "" {
		interaction.Type = "message"
	}

	details, err := json.Marshal(interaction.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	if interaction.Details == nil {
		details = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_interactions (user_id, interaction_type, details, timestamp) VALUES (?, ?, ?, ?)`,
		interaction.UserID, interaction.Type, string(details), formatTime(ts))
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// Interactions lists recorded events for a user, oldest first.
func (s *SQLiteStore) Interactions(ctx context.Context, userID string, limit int) ([]Interaction, error) {
	query := `SELECT user_id, interaction_type, details, timestamp FROM user_interactions
		 WHERE user_id = ? ORDER BY id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	out := []Interaction{}
	for rows.Next() {
		var (
			in          Interaction
			details, ts string
		)
		if err := rows.Scan(&in.UserID, &in.Type, &details, &ts); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &in.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		in.Timestamp = parseTime(ts)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
