// Package digestcmd runs the daily digest, once or on a cron schedule.
package digestcmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ikhorlabs/chanbot/internal/configutil"
	"github.com/ikhorlabs/chanbot/internal/digest"
	"github.com/ikhorlabs/chanbot/internal/persona"
	"github.com/ikhorlabs/chanbot/internal/slackapi"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Compose and deliver the daily task digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(configutil.FlagOrViperString(cmd, "persona", "digest.persona"))
			if name == "" {
				return fmt.Errorf("missing persona (--persona research|sales)")
			}
			cfg, err := persona.Load(viper.GetViper(), name)
			if err != nil {
				return err
			}
			if !cfg.Enabled() {
				return fmt.Errorf("persona %s has no bot token configured", cfg.Name)
			}

			runner := &digest.Runner{
				Persona: cfg,
				Slack:   slackapi.New(nil, viper.GetString("slack.api_base_url"), cfg.Token),
				Log:     slog.Default(),
			}

			cronSpec := strings.TrimSpace(configutil.FlagOrViperString(cmd, "cron", "digest.cron"))
			if cronSpec == "" {
				return runner.Run(cmd.Context())
			}
			return runOnSchedule(cmd.Context(), slog.Default(), runner, cfg, cronSpec)
		},
	}

	cmd.Flags().String("persona", "", "Persona to run: research or sales.")
	cmd.Flags().String("cron", "", "Cron schedule; when set the process stays alive and runs on it.")
	return cmd
}

func runOnSchedule(ctx context.Context, logger *slog.Logger, runner *digest.Runner, cfg *persona.Config, spec string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(spec, func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("digest_run_error", "persona", cfg.Name, "error", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	logger.Info("digest_schedule_start", "persona", cfg.Name, "cron", spec, "timezone", cfg.Timezone)
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("digest_schedule_stop", "persona", cfg.Name)
	return nil
}
