package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ikhorlabs/chanbot/cmd/chanbot/digestcmd"
	"github.com/ikhorlabs/chanbot/cmd/chanbot/exportcmd"
	"github.com/ikhorlabs/chanbot/cmd/chanbot/servecmd"
	"github.com/ikhorlabs/chanbot/internal/logutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chanbot",
		Short:         "Slack list digest and mention bots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "Config file path (YAML).")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error.")
	root.PersistentFlags().String("log-format", "", "Log format: text or json.")

	root.AddCommand(servecmd.New())
	root.AddCommand(digestcmd.New())
	root.AddCommand(exportcmd.New())
	return root
}

func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("CHANBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile, _ := cmd.Flags().GetString("config"); strings.TrimSpace(cfgFile) != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		viper.SetConfigName("chanbot")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/chanbot")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	if lv, _ := cmd.Flags().GetString("log-level"); strings.TrimSpace(lv) != "" {
		viper.Set("log.level", lv)
	}
	if lf, _ := cmd.Flags().GetString("log-format"); strings.TrimSpace(lf) != "" {
		viper.Set("log.format", lf)
	}

	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
