package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"repsum/internal/chunker"
	"repsum/internal/config"
	"repsum/internal/ledger"
	"repsum/internal/pipeline"
	"repsum/internal/summarizer"
)

var version = "dev"

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

var rootCmd = &cobra.Command{
	Use:     "repsum",
	Version: version,
	Short:   "Summarize source archives into a single rolled-up summary.",
	Long: `repsum extracts every zip archive in the source directory, splits each
file into size-bounded chunks, summarizes every chunk through an external
model, and recursively rolls the summaries up per batch and per directory
until one final summary remains.

Completed work is recorded in a resume ledger, so an interrupted run can be
restarted without repeating (or re-billing) finished summarization calls.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	config.InitFlags(rootCmd)
}

func run(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg, err := config.Load(cmd, cwd)
	if err != nil {
		fmt.Println(red.Render(fmt.Sprintf("%v", err)))
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(red.Render(fmt.Sprintf("%v", err)))
		return err
	}

	preamble, err := cfg.LoadPreamble()
	if err != nil {
		fmt.Println(red.Render(fmt.Sprintf("%v", err)))
		return err
	}

	// The per-chunk budget leaves room for the instruction preamble
	// inside the model context.
	chunkTokens := cfg.ContextTokens - chunker.EstimateTokens(preamble)
	if chunkTokens <= 0 {
		err := fmt.Errorf("prompt preamble (%d tokens) exceeds the context budget (%d)",
			chunker.EstimateTokens(preamble), cfg.ContextTokens)
		fmt.Println(red.Render(fmt.Sprintf("%v", err)))
		return err
	}

	led, err := ledger.Load(cfg.LedgerFile)
	if err != nil {
		fmt.Println(red.Render(fmt.Sprintf("%v", err)))
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf(
		"repsum %s\nsource: %s\noutput: %s\nmodel: %s\nresume ledger: %s (%d done)",
		version, cfg.SourceDir, cfg.OutputDir, cfg.Service.Model, led.Path(), led.Len())))

	client := summarizer.New(summarizer.Config{
		BaseURL:         cfg.Service.BaseURL,
		Model:           cfg.Service.Model,
		APIKey:          cfg.Service.APIKey,
		Preamble:        preamble,
		MaxOutputTokens: cfg.Service.MaxOutputTokens,
		Temperature:     cfg.Service.Temperature,
		TopP:            cfg.Service.TopP,
		Cooldown:        time.Duration(cfg.Service.CooldownSeconds) * time.Second,
		Retry: summarizer.Policy{
			MaxAttempts: cfg.Service.MaxAttempts,
			BaseDelay:   summarizer.DefaultBaseDelay,
		},
	}, led)

	p := pipeline.New(pipeline.Config{
		SourceDir:   cfg.SourceDir,
		OutputDir:   cfg.OutputDir,
		BatchSize:   cfg.BatchSize,
		ChunkTokens: chunkTokens,
		FinalPath:   cfg.FinalSummaryPath(),
	}, client, led)

	stats, err := p.Run(ctx)
	if err != nil {
		fmt.Println(red.Render(fmt.Sprintf("%v", err)))
		return err
	}

	printStatistics(stats)
	return nil
}

func printStatistics(stats *pipeline.Statistics) {
	pterm.Success.Printfln("Run finished in %s", stats.Duration.Round(time.Second))

	summary := fmt.Sprintf(
		"archives processed: %d\nfiles chunked: %d\nchunks summarized: %d\nchunks resumed from ledger: %d\nbatch summaries: %d\ndirectory summaries: %d",
		stats.ArchivesProcessed, stats.FilesProcessed, stats.ChunksSummarized,
		stats.ChunksSkipped, stats.BatchSummaries, stats.DirectorySummaries)
	fmt.Println(headerStyle.Render(summary))

	if stats.FinalSummaryPath != "" {
		fmt.Println(green.Render("Final summary: " + stats.FinalSummaryPath))
	} else {
		fmt.Println(yellow.Render("No directory summaries were produced; no final summary written."))
	}

	if len(stats.ErrorMessages) > 0 {
		pterm.Warning.Printfln("%d unit(s) of work failed and were skipped:", len(stats.ErrorMessages))
		for _, msg := range stats.ErrorMessages {
			fmt.Println(yellow.Render("  " + msg))
		}
	}
}
