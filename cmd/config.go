package cmd

import (
	"fmt"
	"strconv"

	"github.com/KaramelBytes/aicfo/internal/advisor"
	cfgpkg "github.com/KaramelBytes/aicfo/internal/config"
	"github.com/KaramelBytes/aicfo/internal/secrets"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set AI CFO configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data_file: %s\n", cfg.DataFile)
		fmt.Fprintf(out, "secrets_file: %s\n", cfg.SecretsFile)
		fmt.Fprintf(out, "model: %s\n", cfg.Model)
		fmt.Fprintf(out, "temperature: %.1f (fixed)\n", advisor.Temperature)
		fmt.Fprintf(out, "base_url: %s\n", cfg.BaseURL)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		key, source, err := secrets.NewResolver(cfg.SecretsFile).Resolve()
		switch {
		case err != nil:
			fmt.Fprintf(out, "%s: (%v)\n", secrets.KeyName, err)
		default:
			fmt.Fprintf(out, "%s: %s (from %s)\n", secrets.KeyName, mask(key), source)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if err := ensureConfig(); err != nil {
			return err
		}
		updated := *cfg
		switch key {
		case "data_file":
			updated.DataFile = val
		case "secrets_file":
			updated.SecretsFile = val
		case "model":
			updated.Model = val
		case "temperature":
			return fmt.Errorf("temperature is fixed at %.1f and cannot be set", advisor.Temperature)
		case "base_url":
			updated.BaseURL = val
		case "http_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for http_timeout_sec: %w", err)
			}
			updated.HTTPTimeoutSec = i
		case "listen_addr":
			updated.ListenAddr = val
		case "log_level":
			updated.LogLevel = val
		case "log_format":
			updated.LogFormat = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&updated, cfgFile); err != nil {
			return err
		}
		cfg = &updated
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
