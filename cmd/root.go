package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/KaramelBytes/aicfo/internal/advisor"
	"github.com/KaramelBytes/aicfo/internal/ai"
	cfgpkg "github.com/KaramelBytes/aicfo/internal/config"
	"github.com/KaramelBytes/aicfo/internal/secrets"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile            string
	debug              bool
	flagHTTPTimeoutSec int

	// Loaded configuration
	cfg *cfgpkg.Global

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "aicfo",
	Short: "AI CFO: cashflow KPIs and AI-backed management decisions",
	Long: `AI CFO loads a small financial dataset, derives average profit, starting cash and
cash runway, and on request asks an OpenAI model for a CFO-style recommendation.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.aicfo/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "completion request timeout in seconds (overrides config)")
}

func loadConfig() {
	// .env is optional; anything already in the environment wins.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WithError(err).Warn("failed to load .env")
	}
	if err := ensureConfig(); err != nil {
		// Non-fatal: config show/set can still run
		logger.WithError(err).Warn("failed to load config")
	}
}

// ensureConfig loads configuration once and applies flag overrides.
func ensureConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	if f := rootCmd.PersistentFlags(); f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	cfg = c
	configureLogger(logger, cfg.LogLevel, cfg.LogFormat, debug)
	return nil
}

func configureLogger(l *logrus.Logger, level, format string, debug bool) {
	l.SetOutput(os.Stderr)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if debug {
		lvl = logrus.DebugLevel
	}
	l.SetLevel(lvl)
}

// newAdvisor wires credential resolution and the OpenAI client from config.
func newAdvisor(c *cfgpkg.Global, log logrus.FieldLogger) *advisor.Advisor {
	creds := secrets.NewResolver(c.SecretsFile)
	factory := func(apiKey string) ai.Runtime {
		return ai.NewClientWithBaseURL(apiKey, c.HTTPTimeout(), c.BaseURL)
	}
	return advisor.New(creds, factory, c.Model, log)
}
