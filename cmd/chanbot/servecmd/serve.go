// Package servecmd runs the webhook HTTP server that hosts both persona
// event endpoints.
package servecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ikhorlabs/chanbot/internal/configutil"
	"github.com/ikhorlabs/chanbot/internal/events"
	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/slackapi"
	uniaiprovider "github.com/ikhorlabs/chanbot/providers/uniai"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack events webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			listen := strings.TrimSpace(configutil.FlagOrViperString(cmd, "listen", "server.listen"))
			if listen == "" {
				listen = ":3000"
			}
			return runServer(cmd.Context(), slog.Default(), listen)
		},
	}

	cmd.Flags().String("listen", ":3000", "HTTP listen address.")
	return cmd
}

func runServer(ctx context.Context, logger *slog.Logger, listen string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux, mounted, err := newServeMux(logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server_start", "addr", listen, "personas", mounted)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server_stop")
	return nil
}

func newServeMux(logger *slog.Logger) (*http.ServeMux, int, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte("chanbot webhook server\n"))
	})

	mounted := 0
	for _, name := range []string{"research", "sales"} {
		cfg, err := persona.Load(viper.GetViper(), name)
		if err != nil {
			return nil, 0, err
		}
		if !cfg.Enabled() {
			logger.Warn("persona_skipped", "persona", name, "reason", "missing bot token")
			continue
		}
		handler, err := newPersonaHandler(cfg, logger)
		if err != nil {
			return nil, 0, err
		}
		path := "/slack/" + name + "/events"
		mux.Handle(path, handler)
		if name == "research" {
			// Original deployment exposed the research bot here before the
			// sales persona existed.
			mux.Handle("/slack/events", handler)
		}
		logger.Info("persona_mounted", "persona", name, "path", path)
		mounted++
	}
	if mounted == 0 {
		return nil, 0, errors.New("no personas configured (set research.bot_token or sales.bot_token)")
	}
	return mux, mounted, nil
}

func newPersonaHandler(cfg *persona.Config, logger *slog.Logger) (*events.Handler, error) {
	apiKey := strings.TrimSpace(viper.GetString("llm.api_key"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing llm.api_key for persona %s", cfg.Name)
	}
	chat, err := uniaiprovider.New(uniaiprovider.Config{
		Provider:       viper.GetString("llm.provider"),
		Endpoint:       viper.GetString("llm.endpoint"),
		APIKey:         apiKey,
		RequestTimeout: viper.GetDuration("llm.request_timeout"),
	})
	if err != nil {
		return nil, err
	}
	return &events.Handler{
		Persona: cfg,
		Slack:   slackapi.New(nil, viper.GetString("slack.api_base_url"), cfg.Token),
		LLM:     chat,
		Log:     logger,
	}, nil
}
