// Package events routes verified Slack webhook payloads: challenge echo,
// help replies, and LLM-backed mention replies. The 200 acknowledgment is
// always written before any downstream work starts.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ikhorlabs/chanbot/internal/llm"
	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/signature"
	"github.com/ikhorlabs/chanbot/internal/slackapi"
)

const maxBodyBytes = 1 << 20

// SlackService is the slice of the Slack client mention handling needs.
type SlackService interface {
	PostMessage(ctx context.Context, req slackapi.PostMessageRequest) error
	ListItems(ctx context.Context, listID string, limit int) ([]slackapi.ListItem, error)
	ThreadReplies(ctx context.Context, channel, ts string, limit int) ([]slackapi.Message, error)
}

// Handler serves one persona's webhook mount point.
type Handler struct {
	Persona *persona.Config
	Slack   SlackService
	LLM     llm.Client
	Log     *slog.Logger
	Now     func() time.Time

	// Background runs mention handling after the ack; defaults to a new
	// goroutine. Tests inject a synchronous variant.
	Background func(fn func())
}

type eventEnvelope struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

type mentionEvent struct {
	Type     string `json:"type"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
	Channel  string `json:"channel,omitempty"`
	TS       string `json:"ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := h.logger()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	nowFn := h.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	err = signature.Verify(
		h.Persona.SigningSecret,
		body,
		r.Header.Get(signature.SignatureHeader),
		r.Header.Get(signature.TimestampHeader),
		nowFn(),
	)
	if err != nil {
		reason := "Unauthorized"
		if errors.Is(err, signature.ErrExpired) {
			reason = "Expired"
		}
		log.Warn("webhook_rejected", "persona", h.Persona.Name, "reason", reason)
		http.Error(w, reason, http.StatusUnauthorized)
		return
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if envelope.Type == "url_verification" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": envelope.Challenge})
		return
	}

	// Ack first; everything below runs after the response is on the wire
	// so slow LLM calls can never trigger Slack retries.
	w.WriteHeader(http.StatusOK)

	if envelope.Type != "event_callback" || len(envelope.Event) == 0 {
		return
	}
	var event mentionEvent
	if err := json.Unmarshal(envelope.Event, &event); err != nil {
		log.Warn("webhook_event_parse_error", "persona", h.Persona.Name, "error", err.Error())
		return
	}
	if event.Type != "app_mention" {
		return
	}

	background := h.Background
	if background == nil {
		background = func(fn func()) { go fn() }
	}
	background(func() {
		// Detached from the request context: the ack already went out and
		// the mention reply lives or dies on its own.
		h.handleMention(context.Background(), event)
	})
}

func (h *Handler) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}
