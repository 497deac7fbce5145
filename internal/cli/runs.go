package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rcliao/flashcards/internal/history"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past generation runs",
		Run:   runRuns,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max runs")
	cmd.Flags().String("type", "", "Filter by source type: text, file, pdf, image")
	cmd.Flags().String("prune-cache", "", "Drop cached completions older than this age (e.g. 30d, 12h)")

	RootCmd.AddCommand(cmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	sourceType, _ := cmd.Flags().GetString("type")
	prune, _ := cmd.Flags().GetString("prune-cache")

	e := loadEnv(cmd)
	h, err := e.openHistory()
	if err != nil {
		exitErr("open history", err)
	}
	defer h.Close()

	if prune != "" {
		age, err := history.ParseAge(prune)
		if err != nil {
			exitErr("invalid --prune-cache", err)
		}
		n, err := h.PruneCompletions(cmd.Context(), age)
		if err != nil {
			exitErr("prune cache", err)
		}
		e.logger.Info("pruned cached completions", "removed", n, "older_than", prune)
	}

	runs, err := h.ListRuns(cmd.Context(), history.ListParams{SourceType: sourceType, Limit: limit})
	if err != nil {
		exitErr("list runs", err)
	}

	if jsonOutput() {
		b, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(b))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tTYPE\tSEGMENTS\tCARDS\tFAILED\tSOURCE")
	for _, r := range runs {
		started := r.StartedAt.Local().Format(time.DateTime)
		line := fmt.Sprintf("%s\t%s\t%s\t%d\t%d\t%d\t%s", r.ID, started, r.SourceType, r.Segments, r.Cards, r.Failures, r.Source)
		if r.Error != "" {
			line = color.RedString(line + "\t" + r.Error)
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
}
