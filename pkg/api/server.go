// Package api provides the HTTP surface: the Slack webhook entry points
// (events, interactivity, slash command), a health/status API, and a
// WebSocket feed of domain events for operations.
//
// The entry points only parse a request body into an Event and forward it to
// the router; all behavior lives in the modules.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/penny-university/pennybot/pkg/bot"
	"github.com/penny-university/pennybot/pkg/config"
	"github.com/penny-university/pennybot/pkg/domain"
	"github.com/penny-university/pennybot/pkg/logger"
	pennychatmod "github.com/penny-university/pennybot/pkg/modules/pennychat"
	slackclient "github.com/penny-university/pennybot/pkg/slack"
	"github.com/penny-university/pennybot/pkg/templates"
)

// Server is the HTTP server for pennybot.
type Server struct {
	cfg       *config.Config
	router    *bot.Bot
	chats     *pennychatmod.Handlers
	client    slackclient.Client
	bus       domain.EventBus
	hub       *WSHub
	bridge    *EventBridge
	startTime time.Time
	server    *http.Server
}

// NewServer wires the HTTP surface.
func NewServer(
	cfg *config.Config,
	router *bot.Bot,
	chats *pennychatmod.Handlers,
	client slackclient.Client,
	bus domain.EventBus,
) *Server {
	s := &Server{
		cfg:       cfg,
		router:    router,
		chats:     chats,
		client:    client,
		bus:       bus,
		startTime: time.Now(),
	}
	s.hub = NewWSHub()
	s.bridge = NewEventBridge(bus, s.hub)
	return s
}

// Start begins listening on the configured host:port. It returns
// immediately; the listener runs until Stop.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Slack webhook entry points, behind signature verification
	mux.Handle("/hooks/events", verifySlackSignature(s.cfg.Slack.SigningSecret, http.HandlerFunc(s.handleEvents)))
	mux.Handle("/hooks/interactive", verifySlackSignature(s.cfg.Slack.SigningSecret, http.HandlerFunc(s.handleInteractive)))
	mux.Handle("/hooks/command", verifySlackSignature(s.cfg.Slack.SigningSecret, http.HandlerFunc(s.handleCommand)))

	// Ops API
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/ws", s.hub.HandleWebSocket)

	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.InfoCF("api", "HTTP server starting", map[string]interface{}{
		"addr": s.cfg.Addr(),
	})

	go s.hub.Run(ctx)
	go s.bridge.Run(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("api", "Server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Slack entry points
// ---------------------------------------------------------------------------

// handleEvents receives the Events API stream: the one-time URL verification
// challenge, then wrapped workspace events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	var blob map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&blob); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if challenge, ok := blob["challenge"].(string); ok {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, challenge)
		return
	}

	inner, _ := blob["event"].(map[string]interface{})
	event := bot.NewEvent(inner)

	// The bot's own posts echo back through this stream; dropping them here
	// keeps every module from having to repeat the check.
	if event.String("subtype") == "bot_message" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := s.router.Dispatch(event); err != nil {
		// Errors are logged, not surfaced: a non-200 makes Slack re-deliver
		// the event and the handlers are not idempotent against that.
		logger.ErrorCF("api", "Event dispatch failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	w.WriteHeader(http.StatusOK)
}

// handleInteractive receives interaction payloads (block actions, view
// submissions) and echoes a module's synchronous result back when one is
// produced; that is how modal validation errors reach the client.
func (s *Server) handleInteractive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(r.PostFormValue("payload")), &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload JSON"})
		return
	}

	result, err := s.router.Dispatch(bot.NewEvent(payload))
	if err != nil {
		logger.ErrorCF("api", "Interaction dispatch failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if result != nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleCommand receives the /penny slash command. The text splits on the
// first whitespace into a command token and a remainder; unrecognized
// tokens are ignored.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form body"})
		return
	}

	payload := map[string]interface{}{}
	for key := range r.PostForm {
		payload[key] = r.PostFormValue(key)
	}
	event := bot.NewEvent(payload)

	token, _, _ := strings.Cut(event.String("text"), " ")
	switch token {
	case "chat":
		if err := s.chats.CreateChat(r.Context(), event); err != nil {
			logger.ErrorCF("api", "Chat creation failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	case "help":
		err := s.client.PostEphemeral(r.Context(),
			event.String("channel_id"), event.String("user_id"), templates.HelpMessage())
		if err != nil {
			logger.ErrorCF("api", "Help message failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	w.WriteHeader(http.StatusOK)
}

// ---------------------------------------------------------------------------
// Ops API
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"modules":        s.router.Modules(),
		"ws_clients":     s.hub.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
