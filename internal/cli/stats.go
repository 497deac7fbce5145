package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/flashcards/internal/cardstore"
	"github.com/rcliao/flashcards/internal/history"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show card file and run history statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	Cards   *cardstore.Stats `json:"cards"`
	History *history.Stats   `json:"history,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) {
	e := loadEnv(cmd)

	cards, err := e.openStore().Stats()
	if err != nil {
		exitErr("card stats", err)
	}
	out := statsOutput{Cards: cards}

	if h, err := e.openHistory(); err != nil {
		e.logger.Warn("run history unavailable", "err", err)
	} else {
		defer h.Close()
		out.History, err = h.Stats(cmd.Context(), e.cfg.HistoryDB)
		if err != nil {
			exitErr("history stats", err)
		}
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
