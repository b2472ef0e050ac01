package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/sirupsen/logrus"
)

// surrealClient is the subset of surreal.Client the store needs.
type surrealClient interface {
	QueryRows(ctx context.Context, sql string, vars map[string]interface{}) ([]map[string]interface{}, error)
	Create(ctx context.Context, table string, data interface{}) error
	SelectWhere(ctx context.Context, table string, filter map[string]interface{}, orderBy string, limit int) ([]map[string]interface{}, error)
	Close()
}

type SurrealStore struct {
	client surrealClient
	now    func() time.Time
}

func NewSurrealStore(ctx context.Context, client surrealClient, logger logrus.FieldLogger) *SurrealStore {
	store := &SurrealStore{
		client: client,
		now:    time.Now,
	}
	if err := store.Init(ctx); err != nil {
		// Schema may already exist or the DB may come up later
		logger.WithError(err).Warn("Failed to initialize SurrealDB schema")
	}
	return store
}

func (s *SurrealStore) Init(ctx context.Context) error {
	query := `
		DEFINE TABLE IF NOT EXISTS messages SCHEMALESS;
		DEFINE INDEX IF NOT EXISTS messages_user ON messages FIELDS user_id;

		DEFINE TABLE IF NOT EXISTS user_profiles SCHEMALESS;
		DEFINE FIELD IF NOT EXISTS interaction_count ON user_profiles TYPE int DEFAULT 0;

		DEFINE TABLE IF NOT EXISTS user_interactions SCHEMALESS;
		DEFINE INDEX IF NOT EXISTS interactions_user ON user_interactions FIELDS user_id;
	`
	_, err := s.client.QueryRows(ctx, query, nil)
	return err
}

func (s *SurrealStore) Close() error {
	s.client.Close()
	return nil
}

func (s *SurrealStore) SaveMessage(ctx context.Context, msg Message) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	if msg.Emotion == "" {
		msg.Emotion = "neutral"
	}

	err := s.client.Create(ctx, "messages", map[string]interface{}{
		"user_id":   msg.UserID,
		"message":   msg.Text,
		"response":  msg.Response,
		"sentiment": msg.Sentiment,
		"emotion":   msg.Emotion,
		"timestamp": ts.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *SurrealStore) RecentMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}

	rows, err := s.client.SelectWhere(ctx, "messages", map[string]interface{}{"user_id": userID}, "timestamp DESC", limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	messages := make([]Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		messages = append(messages, Message{
			ID:        extractID(row),
			UserID:    toString(row["user_id"]),
			Text:      toString(row["message"]),
			Response:  toString(row["response"]),
			Sentiment: toFloat64(row["sentiment"]),
			Emotion:   toString(row["emotion"]),
			Timestamp: time.Unix(0, toInt64(row["timestamp"])),
		})
	}
	return messages, nil
}

func (s *SurrealStore) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	rows, err := s.client.SelectWhere(ctx, "user_profiles", map[string]interface{}{"user_id": userID}, "", 1)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	row := rows[0]
	return &UserProfile{
		UserID:           toString(row["user_id"]),
		Name:             toString(row["name"]),
		Preferences:      toString(row["preferences"]),
		InteractionCount: int(toInt64(row["interaction_count"])),
		FirstInteraction: time.Unix(0, toInt64(row["first_interaction"])),
		LastInteraction:  time.Unix(0, toInt64(row["last_interaction"])),
		EmotionalProfile: orDefault(json.RawMessage(toString(row["emotional_profile"])), emptyEmotionalProfile),
		PurchaseHistory:  orDefault(json.RawMessage(toString(row["purchase_history"])), emptyPurchaseHistory),
	}, nil
}

const ensureProfileQuery = `
	INSERT INTO user_profiles (id, user_id, name, preferences, interaction_count, first_interaction, last_interaction, emotional_profile, purchase_history)
	VALUES (type::thing("user_profiles", $user_id), $user_id, "", "", 0, $now, $now, "{}", "[]")
	ON DUPLICATE KEY UPDATE last_interaction = $now;
`

func (s *SurrealStore) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error {
	if err := update.validate(); err != nil {
		return err
	}

	patch := map[string]interface{}{}
	if update.Name != nil {
		patch["name"] = *update.Name
	}
	if update.Preferences != nil {
		patch["preferences"] = *update.Preferences
	}
	if update.EmotionalProfile != nil {
		patch["emotional_profile"] = string(update.EmotionalProfile)
	}
	if update.PurchaseHistory != nil {
		patch["purchase_history"] = string(update.PurchaseHistory)
	}

	query := ensureProfileQuery + `UPDATE type::thing("user_profiles", $user_id) MERGE $patch;`
	_, err := s.client.QueryRows(ctx, query, map[string]interface{}{
		"user_id": userID,
		"now":     s.now().UnixNano(),
		"patch":   patch,
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *SurrealStore) IncrementInteractions(ctx context.Context, userID string) (int, error) {
	query := `
		INSERT INTO user_profiles (id, user_id, name, preferences, interaction_count, first_interaction, last_interaction, emotional_profile, purchase_history)
		VALUES (type::thing("user_profiles", $user_id), $user_id, "", "", 1, $now, $now, "{}", "[]")
		ON DUPLICATE KEY UPDATE interaction_count += 1, last_interaction = $now;
		SELECT interaction_count FROM type::thing("user_profiles", $user_id);
	`
	rows, err := s.client.QueryRows(ctx, query, map[string]interface{}{
		"user_id": userID,
		"now":     s.now().UnixNano(),
	})
	if err != nil {
		return 0, fmt.Errorf("increment interactions: %w", err)
	}
	if len(rows) == 0 {
		return 0, ErrNotFound
	}
	return int(toInt64(rows[0]["interaction_count"])), nil
}

func (s *SurrealStore) RecordInteraction(ctx context.Context, interaction Interaction) error {
	ts := interaction.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	if interaction.Type == "" {
		interaction.Type = "message"
	}
	details := interaction.Details
	if details == nil {
		details = map[string]interface{}{}
	}

	err := s.client.Create(ctx, "user_interactions", map[string]interface{}{
		"user_id":          interaction.UserID,
		"interaction_type": interaction.Type,
		"details":          details,
		"timestamp":        ts.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// extractID renders a record id as "table:id" whatever shape the driver returned.
func (s *SurrealStore) Interactions(ctx context.Context, userID string, limit int) ([]Interaction, error) {
	rows, err := s.client.SelectWhere(ctx, "user_interactions", map[string]interface{}{"user_id": userID}, "timestamp DESC", limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}

	out := make([]Interaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		details, _ := row["details"].(map[string]interface{})
		if details == nil {
			details = map[string]interface{}{}
		}
		out = append(out, Interaction{
			UserID:    toString(row["user_id"]),
			Type:      toString(row["interaction_type"]),
			Details:   details,
			Timestamp: time.Unix(0, toInt64(row["timestamp"])),
		})
	}
	return out, nil
}

func extractID(row map[string]interface{}) string {
	raw, ok := row["id"]
	if !ok || raw == nil {
		return ""
	}

	switch v := raw.(type) {
	case string:
		return v
	case map[string]interface{}:
		table := toString(firstOf(v, "Table", "tb"))
		id := fmt.Sprint(firstOf(v, "ID", "id"))
		return table + ":" + id
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		table := rv.FieldByName("Table")
		id := rv.FieldByName("ID")
		if table.IsValid() && id.IsValid() {
			return fmt.Sprintf("%v:%v", table.Interface(), id.Interface())
		}
	}

	return fmt.Sprint(raw)
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
