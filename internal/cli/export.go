package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/flashcards/internal/cardstore"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export flashcards as JSON",
		Long:  "Print the stored flashcards as a JSON array. Use --unique to drop repeated questions from the output.",
		Run:   runExport,
	}

	cmd.Flags().Bool("unique", false, "Omit cards whose question repeats an earlier one")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	unique, _ := cmd.Flags().GetBool("unique")

	e := loadEnv(cmd)
	cards, err := e.openStore().Load()
	if err != nil {
		exitErr("export", err)
	}
	if unique {
		cards = cardstore.Dedup(cards)
	}

	b, _ := json.MarshalIndent(cards, "", "  ")
	fmt.Println(string(b))
}
