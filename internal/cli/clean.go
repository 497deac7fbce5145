package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove duplicate questions from the card file",
		Long:  "Remove cards whose question repeats an earlier one (ignoring case and surrounding spaces). The first card is kept.",
		Run:   runClean,
	}

	RootCmd.AddCommand(cmd)
}

func runClean(cmd *cobra.Command, args []string) {
	e := loadEnv(cmd)
	removed, err := e.openStore().Clean()
	if err != nil {
		exitErr("clean", err)
	}

	if jsonOutput() {
		fmt.Printf(`{"ok":true,"removed":%d}`+"\n", removed)
		return
	}
	fmt.Printf("Removed %d duplicate flashcards.\n", removed)
}
