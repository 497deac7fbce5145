// Package cli implements the flashcards CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rcliao/flashcards/internal/cardstore"
	"github.com/rcliao/flashcards/internal/config"
	"github.com/rcliao/flashcards/internal/history"
	"github.com/rcliao/flashcards/internal/logger"
)

var (
	configFile string
	formatFlag string
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"storage":      "storage",
	"history-db":   "history_db",
	"provider":     "provider",
	"model":        "model",
	"base-url":     "base_url",
	"log-level":    "log_level",
	"log-json":     "log_json",
	"questions":    "questions_per_segment",
	"target-words": "target_words",
	"timeout":      "timeout",
}

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "flashcards",
	Short: "Generate study flashcards from text, PDFs and images",
	Long: "Turns notes, documents and scanned pages into question/answer flashcards using a local or " +
		"hosted language model. Cards are kept in a JSON file; runs are recorded in SQLite.",
	SilenceUsage: true,
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Config file (default: ./flashcard_config.{yaml,yml,json})")
	pf.StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
	pf.StringP("storage", "s", "", "Card file (default: flashcards.json)")
	pf.String("history-db", "", "Run history database (default: ~/.flashcards/history.db)")
	pf.String("provider", "", "Model provider: ollama or openai")
	pf.StringP("model", "m", "", "Model name")
	pf.String("base-url", "", "Provider base URL")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.Bool("log-json", false, "Log as JSON")
}

// env bundles the loaded configuration and logger for one command.
type env struct {
	cfg    *config.Config
	logger *log.Logger
}

func loadEnv(cmd *cobra.Command) *env {
	flags := map[string]any{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			flags[key] = f.Value.String()
		}
	})

	cfg, err := config.Load(config.LoadOptions{File: configFile, Flags: flags})
	if err != nil {
		exitErr("load config", err)
	}

	l := logger.New(logger.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	for _, issue := range cfg.Validate() {
		l.Warn("configuration issue", "issue", issue)
	}
	if path := config.File(config.LoadOptions{File: configFile}); path != "" {
		l.Debug("loaded config file", "path", path)
	}
	return &env{cfg: cfg, logger: l}
}

func (e *env) openStore() *cardstore.Store {
	return cardstore.New(e.cfg.Storage, e.logger)
}

func (e *env) openHistory() (*history.SQLiteStore, error) {
	return history.NewSQLiteStore(e.cfg.HistoryDB)
}

func jsonOutput() bool {
	return formatFlag == "json"
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
