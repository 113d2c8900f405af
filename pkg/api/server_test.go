package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-university/pennybot/pkg/bot"
	"github.com/penny-university/pennybot/pkg/config"
)

type recordedEphemeral struct {
	channel string
	user    string
}

type fakeClient struct {
	mu         sync.Mutex
	ephemerals []recordedEphemeral
}

func (f *fakeClient) PostMessage(ctx context.Context, destination string, blocks []slack.Block) (string, string, error) {
	return destination, "1700000001.000100", nil
}

func (f *fakeClient) PostEphemeral(ctx context.Context, channel, userID string, blocks []slack.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, recordedEphemeral{channel: channel, user: userID})
	return nil
}

func (f *fakeClient) DeleteMessage(ctx context.Context, channel, timestamp string) error {
	return nil
}

func (f *fakeClient) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) (string, error) {
	return "V0NEW", nil
}

func (f *fakeClient) UserInfo(ctx context.Context, userID string) (*slack.User, error) {
	return &slack.User{ID: userID}, nil
}

// recordingModule captures every event offered to it and optionally replies
// with a fixed result.
func recordingModule(name string, result bot.Result) (*bot.Module, *[]bot.Event) {
	var seen []bot.Event
	m := bot.NewModule(name).Handle("record", func(e bot.Event) (bot.Result, error) {
		seen = append(seen, e)
		return result, nil
	})
	return m, &seen
}

func testServer(t *testing.T, modules ...*bot.Module) (*Server, *fakeClient) {
	t.Helper()
	cfg := config.Defaults()
	client := &fakeClient{}
	return NewServer(cfg, bot.New(modules...), nil, client, nil), client
}

func TestEventsChallengeEcho(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/hooks/events",
		strings.NewReader(`{"type":"url_verification","challenge":"abc123"}`))
	rec := httptest.NewRecorder()
	s.handleEvents(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", rec.Body.String())
}

func TestEventsDispatchesInnerEvent(t *testing.T) {
	m, seen := recordingModule("spy", nil)
	s, _ := testServer(t, m)

	req := httptest.NewRequest(http.MethodPost, "/hooks/events",
		strings.NewReader(`{"event":{"type":"message","text":"hello","channel":"C0AAA"}}`))
	rec := httptest.NewRecorder()
	s.handleEvents(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, *seen, 1)
	assert.Equal(t, "message", (*seen)[0].String("type"))
	assert.Equal(t, "hello", (*seen)[0].String("text"))
}

func TestEventsSkipsBotMessages(t *testing.T) {
	m, seen := recordingModule("spy", nil)
	s, _ := testServer(t, m)

	req := httptest.NewRequest(http.MethodPost, "/hooks/events",
		strings.NewReader(`{"event":{"type":"message","subtype":"bot_message","text":"echo"}}`))
	rec := httptest.NewRecorder()
	s.handleEvents(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, *seen)
}

func TestEventsRejectsBadJSON(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/hooks/events", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	s.handleEvents(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInteractiveEchoesResult(t *testing.T) {
	m, _ := recordingModule("modal", bot.Result{
		"response_action": "errors",
		"errors":          map[string]interface{}{"penny_chat_title": "Title is required"},
	})
	s, _ := testServer(t, m)

	form := url.Values{"payload": {`{"type":"view_submission"}`}}
	req := httptest.NewRequest(http.MethodPost, "/hooks/interactive",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handleInteractive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "errors", body["response_action"])
}

func TestInteractiveNoResultIsBareOK(t *testing.T) {
	m, _ := recordingModule("modal", nil)
	s, _ := testServer(t, m)

	form := url.Values{"payload": {`{"type":"block_actions"}`}}
	req := httptest.NewRequest(http.MethodPost, "/hooks/interactive",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handleInteractive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCommandHelp(t *testing.T) {
	s, client := testServer(t)

	form := url.Values{
		"command":    {"/penny"},
		"text":       {"help"},
		"user_id":    {"U0AAA"},
		"channel_id": {"C0GEN"},
	}
	req := httptest.NewRequest(http.MethodPost, "/hooks/command",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handleCommand(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, client.ephemerals, 1)
	assert.Equal(t, recordedEphemeral{channel: "C0GEN", user: "U0AAA"}, client.ephemerals[0])
}

func TestCommandUnknownTokenIgnored(t *testing.T) {
	s, client := testServer(t)

	form := url.Values{"command": {"/penny"}, "text": {"bogus stuff"}}
	req := httptest.NewRequest(http.MethodPost, "/hooks/command",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handleCommand(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, client.ephemerals)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := testServer(t)

	for _, h := range []http.HandlerFunc{s.handleEvents, s.handleInteractive, s.handleCommand} {
		req := httptest.NewRequest(http.MethodGet, "/hooks/x", nil)
		rec := httptest.NewRecorder()
		h(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Signature verification
// ---------------------------------------------------------------------------

func sign(secret, body string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%d:%s", ts, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestSignatureVerification(t *testing.T) {
	const secret = "shhh"
	var reached bool
	h := verifySlackSignature(secret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"type":"url_verification"}`
	ts := time.Now().Unix()

	t.Run("valid signature passes with body intact", func(t *testing.T) {
		reached = false
		inner := verifySlackSignature(secret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			var blob map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&blob))
			assert.Equal(t, "url_verification", blob["type"])
		}))

		req := httptest.NewRequest(http.MethodPost, "/hooks/events", strings.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", fmt.Sprint(ts))
		req.Header.Set("X-Slack-Signature", sign(secret, body, ts))
		rec := httptest.NewRecorder()
		inner.ServeHTTP(rec, req)

		assert.True(t, reached)
	})

	t.Run("wrong signature rejected", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/hooks/events", strings.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", fmt.Sprint(ts))
		req.Header.Set("X-Slack-Signature", sign("wrong-secret", body, ts))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, reached)
	})

	t.Run("missing headers rejected", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/hooks/events", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, reached)
	})

	t.Run("empty secret passes through", func(t *testing.T) {
		reached = false
		open := verifySlackSignature("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
		}))
		req := httptest.NewRequest(http.MethodPost, "/hooks/events", strings.NewReader(body))
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, req)

		assert.True(t, reached)
	})
}

func TestHealthAndStatus(t *testing.T) {
	s, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	rec = httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status, "uptime_seconds")
}
