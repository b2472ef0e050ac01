package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personachat/pkg/cache"
	"personachat/pkg/chat"
	"personachat/pkg/config"
	"personachat/pkg/cta"
	"personachat/pkg/logging"
	"personachat/pkg/memory"
	"personachat/pkg/metrics"
	"personachat/pkg/persona"
	"personachat/pkg/session"
)

// fakeChat answers every message the same way and commits the turn
type fakeChat struct {
	calls int
}

func (f *fakeChat) HandleMessage(ctx context.Context, text string, sess *session.Session) chat.Result {
	f.calls++
	var decision *cta.Decision
	if strings.Contains(text, "pack") {
		d := cta.Select("neutral")
		decision = &d
	}
	sess.Append(session.Turn{User: text, Assistant: "Oi amor!"})
	return chat.Result{
		Response: "Oi amor!",
		Persona:  persona.Get(persona.Afternoon),
		CTA:      decision,
		Success:  true,
	}
}

type testEnv struct {
	server   *Server
	sessions *session.Manager
	chat     *fakeChat
	store    *memory.SQLiteStore
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, tweak func(cfg *config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	if tweak != nil {
		tweak(cfg)
	}

	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	sessions := session.NewManager(time.Hour)
	m := metrics.New(reg, sessions.Count)
	fc := &fakeChat{}

	s := New(Deps{
		Config:   cfg,
		Sessions: sessions,
		Chat:     fc,
		Clock: persona.NewClockAt(time.UTC, func() time.Time {
			return time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)
		}),
		Store:    store,
		Metrics:  m,
		Registry: reg,
		Logger:   logging.Discard(),
	})

	return &testEnv{server: s, sessions: sessions, chat: fc, store: store, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := map[string]interface{}{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (e *testEnv) startVerified(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["session_id"].(string)

	resp, _ = e.do(t, http.MethodPost, "/api/sessions/"+id+"/age", `{"confirmed":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return id
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, nil)

	resp, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestCreateSession(t *testing.T) {
	env := newTestServer(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.NotEmpty(t, body["session_id"])
	assert.Len(t, body["user_id"], 8)
	assert.Equal(t, persona.Get(persona.Afternoon).Greeting, body["greeting"])
	assert.Equal(t, "assets/audio/welcome.mp3", body["welcome_audio"])

	sess, ok := env.sessions.Get(body["session_id"].(string))
	require.True(t, ok)
	assert.Equal(t, 1, sess.AudioCount)
}

func TestSessionStats(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)

	env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"oi"}`)
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"tudo bem?"}`)

	resp, body := env.do(t, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["messages"])
	assert.EqualValues(t, 4, body["minutes_online"])
	assert.EqualValues(t, 1, body["audios"])
	assert.Equal(t, true, body["age_verified"])

	resp, body = env.do(t, http.MethodGet, "/api/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Session not found", body["error"])
}

func TestAgeGate(t *testing.T) {
	env := newTestServer(t, nil)
	_, body := env.do(t, http.MethodPost, "/api/sessions", "")
	id := body["session_id"].(string)

	t.Run("Messages Blocked Before Confirmation", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"oi"}`)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, env.chat.calls)
	})

	t.Run("Declined", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/age", `{"confirmed":false}`)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Confirmed", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/age", `{"confirmed":true}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["age_verified"])
	})
}

func TestSendMessage(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)

	resp, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"  quero ver seus packs  "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "Oi amor!", body["response"])
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["message_count"])

	delay := body["typing_delay_ms"].(float64)
	assert.GreaterOrEqual(t, delay, 1000.0)
	assert.LessOrEqual(t, delay, 4000.0)

	decision, ok := body["cta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, decision["should_show"])

	sess, _ := env.sessions.Get(id)
	require.Len(t, sess.History, 1)
	assert.Equal(t, "quero ver seus packs", sess.History[0].User)
}

func TestSendMessage_Validation(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)

	resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/missing/messages", `{"text":"oi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Zero(t, env.chat.calls)
}

func TestSendMessage_SessionLimit(t *testing.T) {
	env := newTestServer(t, func(cfg *config.Config) {
		cfg.Limits.MaxRequestsPerSession = 2
	})
	id := env.startVerified(t)

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"oi"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":"oi"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body["error"], "limite")
	assert.Equal(t, 2, env.chat.calls)
}

func TestRateLimit(t *testing.T) {
	env := newTestServer(t, func(cfg *config.Config) {
		cfg.Limits.RateLimitMessages = 2
		cfg.Limits.RateLimitWindowSeconds = 60
	})

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodGet, "/api/persona", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodGet, "/api/persona", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.EqualValues(t, 60, body["retry_after"])

	// Health sits outside the limited group
	resp, _ = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCatalogRoutes(t *testing.T) {
	env := newTestServer(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/packs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	packs := body["packs"].([]interface{})
	require.Len(t, packs, 3)
	first := packs[0].(map[string]interface{})
	assert.Equal(t, "essencial", first["key"])
	assert.EqualValues(t, 51, first["discount_percent"])

	resp, body = env.do(t, http.MethodGet, "/api/preview", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["previews"], 6)
	assert.NotEmpty(t, body["profile_image"])

	resp, body = env.do(t, http.MethodGet, "/api/links", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["links"], "telegram")

	resp, body = env.do(t, http.MethodGet, "/api/persona", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := body["persona"].(map[string]interface{})
	assert.Equal(t, string(persona.Afternoon), p["label"])
	assert.Contains(t, body["display"], "Mylle")
}

func TestCheckout(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)
	sess, _ := env.sessions.Get(id)

	resp, body := env.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/premium", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://pay.hotmart.com/premium", body["checkout_url"])
	assert.EqualValues(t, 50, body["discount_percent"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CheckoutClicks.WithLabelValues("premium")))

	interactions, err := env.store.Interactions(context.Background(), sess.UserID, 0)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, "checkout", interactions[0].Type)
	assert.Equal(t, "premium", interactions[0].Details["pack"])

	profile, err := env.store.GetProfile(context.Background(), sess.UserID)
	require.NoError(t, err)
	purchases, err := profile.Purchases()
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, 97, purchases[0].Price)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/platinum", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProfile(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)

	resp, _ := env.do(t, http.MethodGet, "/api/sessions/"+id+"/profile", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPatch, "/api/sessions/"+id+"/profile", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPatch, "/api/sessions/"+id+"/profile", `{"name":"Ana","preferences":"música"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/sessions/"+id+"/profile", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := body["profile"].(map[string]interface{})
	assert.Equal(t, "Ana", profile["name"])
	assert.Equal(t, "música", profile["preferences"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(t, http.MethodPost, "/api/sessions", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := env.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "personachat_sessions_active 1")
}

func TestCheckout_ConcurrentKeepsEveryPurchase(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)
	sess, _ := env.sessions.Get(id)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/checkout/vip", nil)
			resp, err := env.server.App().Test(req, -1)
			if assert.NoError(t, err) {
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				_ = resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	profile, err := env.store.GetProfile(context.Background(), sess.UserID)
	require.NoError(t, err)
	purchases, err := profile.Purchases()
	require.NoError(t, err)
	assert.Len(t, purchases, n)
}

func TestMessageLog(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)
	sess, _ := env.sessions.Get(id)
	ctx := context.Background()

	for _, text := range []string{"um", "dois", "três"} {
		require.NoError(t, env.store.SaveMessage(ctx, memory.Message{UserID: sess.UserID, Text: text, Emotion: "neutral"}))
	}

	resp, body := env.do(t, http.MethodGet, "/api/sessions/"+id+"/messages?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "dois", messages[0].(map[string]interface{})["message"])
	assert.Equal(t, "três", messages[1].(map[string]interface{})["message"])

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/missing/messages", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMessageLog_ServedFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	sqlite, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	store := memory.NewCachedStore(sqlite, cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test"), logging.Discard())
	t.Cleanup(func() { _ = store.Close() })

	sessions := session.NewManager(time.Hour)
	s := New(Deps{
		Config:   config.Default(),
		Sessions: sessions,
		Chat:     &fakeChat{},
		Store:    store,
		Logger:   logging.Discard(),
	})
	sess := sessions.Create()

	ctx := context.Background()
	require.NoError(t, store.SaveMessage(ctx, memory.Message{UserID: sess.UserID, Text: "oi"}))
	require.NoError(t, store.SaveMessage(ctx, memory.Message{UserID: sess.UserID, Text: "tudo bem?"}))

	// Drop the database copy; the capped redis list still has both
	require.NoError(t, sqlite.Close())

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID+"/messages?limit=2", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Messages []memory.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "oi", body.Messages[0].Text)
	assert.Equal(t, "tudo bem?", body.Messages[1].Text)
}

func TestInteractionLog(t *testing.T) {
	env := newTestServer(t, nil)
	id := env.startVerified(t)

	env.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/essencial", "")
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/checkout/vip", "")

	resp, body := env.do(t, http.MethodGet, "/api/sessions/"+id+"/interactions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	interactions := body["interactions"].([]interface{})
	require.Len(t, interactions, 2)
	last := interactions[1].(map[string]interface{})
	assert.Equal(t, "checkout", last["interaction_type"])
	assert.Equal(t, "vip", last["details"].(map[string]interface{})["pack"])
}
