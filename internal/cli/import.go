package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import flashcards from another card file",
		Long:  "Append the cards from a JSON card file (the format written by export) and remove duplicates.",
		Args:  cobra.ExactArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	e := loadEnv(cmd)
	s := e.openStore()

	imported, err := s.Import(args[0])
	if err != nil {
		exitErr("import", err)
	}
	removed, err := s.Clean()
	if err != nil {
		exitErr("clean", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d,"duplicates_removed":%d}`+"\n", imported, removed)
}
