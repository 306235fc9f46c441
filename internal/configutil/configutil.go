// Package configutil resolves command options from either an explicitly
// set cobra flag or a viper configuration key, in that order. Flag
// defaults apply only when neither source provides a value.
package configutil

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func FlagOrViperString(cmd *cobra.Command, flag, key string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func FlagOrViperInt(cmd *cobra.Command, flag, key string) int {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetInt(flag)
		return v
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func FlagOrViperBool(cmd *cobra.Command, flag, key string) bool {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetBool(flag)
		return v
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetBool(key)
	}
	v, _ := cmd.Flags().GetBool(flag)
	return v
}

func FlagOrViperDuration(cmd *cobra.Command, flag, key string) time.Duration {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetDuration(flag)
		return v
	}
	if key != "" && viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	v, _ := cmd.Flags().GetDuration(flag)
	return v
}
