package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rcliao/flashcards/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:     "cards",
		Aliases: []string{"list"},
		Short:   "Show stored flashcards",
		Run:     runCards,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max cards to show (0 for all)")

	RootCmd.AddCommand(cmd)
}

func runCards(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	e := loadEnv(cmd)
	cards, err := e.openStore().Load()
	if err != nil {
		exitErr("load cards", err)
	}
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}

	if jsonOutput() {
		b, _ := json.MarshalIndent(cards, "", "  ")
		fmt.Println(string(b))
		return
	}
	if len(cards) == 0 {
		fmt.Println("No flashcards stored yet.")
		return
	}
	printCards(cards)
}

func printCards(cards []model.Flashcard) {
	q := color.New(color.FgCyan, color.Bold).SprintFunc()
	a := color.New(color.FgGreen).SprintFunc()
	for i, c := range cards {
		fmt.Printf("%s %s\n", q(fmt.Sprintf("Q%d:", i+1)), c.Question)
		fmt.Printf("%s %s\n\n", a("A:"), c.Answer)
	}
}
