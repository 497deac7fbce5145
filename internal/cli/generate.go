package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rcliao/flashcards/internal/extract"
	"github.com/rcliao/flashcards/internal/flashcard"
	"github.com/rcliao/flashcards/internal/generator"
	"github.com/rcliao/flashcards/internal/pipeline"
	"github.com/rcliao/flashcards/internal/textproc"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate [file]",
		Short: "Generate flashcards from text, a text file, a PDF or an image",
		Long: "Generate flashcards from --text, a file (argument or --file), piped stdin, or an interactive " +
			"prompt when stdin is a terminal. New cards are appended to the card file and duplicates removed.",
		Args: cobra.MaximumNArgs(1),
		Run:  runGenerate,
	}

	cmd.Flags().StringP("text", "t", "", "Text to generate flashcards from")
	cmd.Flags().String("file", "", "Text, PDF or image file")
	cmd.Flags().IntP("questions", "q", 0, "Questions per segment (default 3)")
	cmd.Flags().Int("target-words", 0, "Target words per chunk (default 220)")
	cmd.Flags().Duration("timeout", 0, "Timeout per model call (default 2m)")
	cmd.Flags().Bool("summary", false, "Also print a summary of the text")
	cmd.Flags().Bool("no-save", false, "Print cards without saving them")
	cmd.Flags().Bool("no-history", false, "Do not record the run or cache completions")

	RootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) {
	e := loadEnv(cmd)

	in, err := readInput(cmd, args)
	if err != nil {
		exitErr("read input", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, _ := cmd.Flags().GetBool("summary")
	noSave, _ := cmd.Flags().GetBool("no-save")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	base, err := generator.New(e.cfg.GeneratorOptions())
	if err != nil {
		exitErr("create generator", err)
	}

	var (
		gen      generator.Generator = base
		recorder pipeline.Recorder
	)
	if !noHistory {
		hist, err := e.openHistory()
		if err != nil {
			e.logger.Warn("run history unavailable", "path", e.cfg.HistoryDB, "err", err)
		} else {
			defer hist.Close()
			recorder = hist
			if e.cfg.CacheCompletions {
				gen = generator.NewCached(base, hist, cacheScope(base), e.logger)
			}
		}
	}
	gen = generator.NewGuard(gen, e.cfg.GuardOptions(e.logger))

	extractor := extract.New(e.cfg.ExtractOptions(), e.logger)
	defer extractor.Close()

	opts := pipeline.Options{
		Chunker:          e.cfg.ChunkerOptions(),
		Normalize:        e.cfg.NormalizeOptions(),
		MinSegmentLength: e.cfg.MinSegmentLength,
		Summary:          summary,
		NoSave:           noSave,
	}
	if !jsonOutput() {
		opts.OnSegment = func(i, total int) {
			fmt.Fprintf(os.Stderr, "%s segment %d/%d\n", color.CyanString("→"), i+1, total)
		}
	}

	var store pipeline.CardStore
	if !noSave {
		store = e.openStore()
	}

	p := pipeline.New(
		extractor,
		textproc.NewSegmenter(e.logger),
		flashcard.New(gen, e.cfg.FlashcardOptions(), e.logger),
		store, recorder, opts, e.logger,
	).WithModel(base)

	res, err := p.Run(ctx, in)
	if err == nil || len(res.Cards) > 0 {
		printResult(res)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			exitErr("generate", errors.New("interrupted"))
		}
		exitErr("generate", err)
	}
}

func cacheScope(g generator.Generator) string {
	if n, ok := g.(generator.Named); ok {
		return n.Name() + "/" + n.Model()
	}
	return ""
}

// readInput picks the source: --text, a file, piped stdin, or a prompt.
func readInput(cmd *cobra.Command, args []string) (pipeline.Input, error) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")
	if file == "" && len(args) == 1 {
		file = args[0]
	}

	switch {
	case text != "" && file != "":
		return pipeline.Input{}, errors.New("use either --text or a file, not both")
	case text != "":
		return pipeline.Input{Text: text}, nil
	case file != "":
		return pipeline.Input{Path: file}, nil
	}

	if !stdinIsTerminal() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return pipeline.Input{}, err
		}
		return pipeline.Input{Text: string(data)}, nil
	}
	return promptInput()
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func promptInput() (pipeline.Input, error) {
	var kind string
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Input type").
			Description("Where should the flashcards come from?").
			Options(
				huh.NewOption("Type or paste text", "text"),
				huh.NewOption("File (text, PDF or image)", "file"),
			).
			Value(&kind),
	)).Run(); err != nil {
		return pipeline.Input{}, err
	}

	var value string
	var field huh.Field
	if kind == "file" {
		field = huh.NewInput().
			Title("File path").
			Value(&value).
			Validate(func(s string) error {
				if _, err := os.Stat(strings.TrimSpace(s)); err != nil {
					return fmt.Errorf("cannot open %q", s)
				}
				return nil
			})
	} else {
		field = huh.NewText().
			Title("Text").
			Description("Paste the material to study").
			Value(&value).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("text is required")
				}
				return nil
			})
	}
	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return pipeline.Input{}, err
	}

	if kind == "file" {
		return pipeline.Input{Path: strings.TrimSpace(value)}, nil
	}
	return pipeline.Input{Text: value}, nil
}

func printResult(res *pipeline.Result) {
	if jsonOutput() {
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(b))
		return
	}

	if res.Summary != "" {
		fmt.Printf("%s\n%s\n\n", color.New(color.FgMagenta, color.Bold).Sprint("Summary"), res.Summary)
	}
	printCards(res.Cards)

	status := fmt.Sprintf("%d cards from %d segments", len(res.Cards), res.Segments)
	if res.Failures > 0 {
		status += color.YellowString(" (%d segments failed)", res.Failures)
	}
	if res.Saved {
		status += fmt.Sprintf(", saved (%d duplicates removed)", res.Removed)
	}
	fmt.Fprintln(os.Stderr, status)
}
