package servecmd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ikhorlabs/chanbot/internal/signature"
	"github.com/spf13/viper"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func setupResearchOnly(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("research.bot_token", "xoxb-research")
	viper.Set("research.signing_secret", "research-secret")
	viper.Set("llm.api_key", "test-key")
}

func signedEventRequest(t *testing.T, path, secret, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(signature.TimestampHeader, ts)
	req.Header.Set(signature.SignatureHeader, signature.Compute(secret, ts, []byte(body)))
	return req
}

func TestLegacyEventsPathServesResearchPersona(t *testing.T) {
	setupResearchOnly(t)
	mux, mounted, err := newServeMux(testLogger())
	if err != nil {
		t.Fatalf("newServeMux: %v", err)
	}
	if mounted != 1 {
		t.Fatalf("mounted = %d, want 1", mounted)
	}

	body := `{"type":"url_verification","challenge":"legacy-check"}`
	for _, path := range []string{"/slack/events", "/slack/research/events"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, signedEventRequest(t, path, "research-secret", body))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
		var out map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s decode response: %v", path, err)
		}
		if out["challenge"] != "legacy-check" {
			t.Fatalf("%s challenge = %q, want legacy-check", path, out["challenge"])
		}
	}
}

func TestLegacyEventsPathRequiresResearchSignature(t *testing.T) {
	setupResearchOnly(t)
	mux, _, err := newServeMux(testLogger())
	if err != nil {
		t.Fatalf("newServeMux: %v", err)
	}

	body := `{"type":"url_verification","challenge":"x"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, signedEventRequest(t, "/slack/events", "sales-secret", body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestTokenlessPersonaNotMounted(t *testing.T) {
	setupResearchOnly(t)
	mux, _, err := newServeMux(testLogger())
	if err != nil {
		t.Fatalf("newServeMux: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/slack/sales/events", strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestLivenessRoot(t *testing.T) {
	setupResearchOnly(t)
	mux, _, err := newServeMux(testLogger())
	if err != nil {
		t.Fatalf("newServeMux: %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "chanbot webhook server\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestNoPersonasConfigured(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	if _, _, err := newServeMux(testLogger()); err == nil {
		t.Fatalf("expected error when no persona has a bot token")
	}
}
