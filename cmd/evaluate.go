package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"photo-critic/internal/coordinator"
	"photo-critic/internal/imaging"
	"photo-critic/internal/model"
	telem "photo-critic/internal/otel"
	"photo-critic/internal/prompt"
	"photo-critic/internal/results"
)

var (
	flagBatchSize int
	flagDelay     string
	flagOutput    string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <photo.jpg> [more.jpg ...]",
	Short: "Evaluate photographs and write verdicts",
	Long: `Send each photograph to the configured vision model and collect a
structured verdict: category scores, placement recommendation, strengths,
improvements, and commercial metadata for sellable photos.

Photos are dispatched one at a time in batches, with a courtesy delay
between requests. A failed photo is recorded and skipped; the run keeps
going. Ctrl-C cancels after the current photo and still writes partial
results.

Verdicts are appended to a JSONL file (one JSON object per line) and a
run summary is printed to stdout as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd, args)
	},
}

func init() {
	evaluateCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "photos per batch, 5-25 (default: 15)")
	evaluateCmd.Flags().StringVar(&flagDelay, "delay", "", "courtesy delay between requests, 1s-5s (default: 2s)")
	evaluateCmd.Flags().StringVar(&flagOutput, "output", "", "results JSONL path (default: verdicts.jsonl)")
	rootCmd.AddCommand(evaluateCmd)
}

// runSummary is the JSON document printed on stdout after a run.
type runSummary struct {
	Total        int                   `json:"total"`
	Succeeded    int                   `json:"succeeded"`
	Failed       int                   `json:"failed"`
	Cancelled    bool                  `json:"cancelled"`
	TotalCostUSD float64               `json:"total_cost_usd"`
	ResultsPath  string                `json:"results_path"`
	Jobs         []model.EvaluationJob `json:"jobs"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	// Ctrl-C / SIGTERM cancels the run; the coordinator stops before the
	// next dispatch and partial results are still written.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if flagBatchSize > 0 {
		cfg.BatchSize = flagBatchSize
	}
	if flagDelay != "" {
		cfg.RequestDelay = flagDelay
	}
	if flagOutput != "" {
		cfg.ResultsPath = flagOutput
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Wire build version into OTEL service metadata.
	telem.Version = Version
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("otel init failed")
	}
	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
		defer tel.Shutdown(context.WithoutCancel(ctx))
	}

	prov, err := getProvider(cfg, metrics)
	if err != nil {
		return err
	}

	store := results.NewStore()
	coord, err := coordinator.New(coordinator.Options{
		Provider:     prov,
		Encoder:      &imaging.FileEncoder{},
		Prompter:     prompt.Embedded{},
		Sink:         store,
		BatchSize:    cfg.BatchSize,
		RequestDelay: cfg.RequestDelayDuration,
		MaxTokens:    cfg.MaxTokens,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}

	if _, err := coord.Enqueue(args...); err != nil {
		return err
	}

	logger.Info().
		Str("provider", prov.Name()).
		Str("model", prov.Model()).
		Int("photos", len(args)).
		Msg("starting evaluation")

	if err := coord.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if store.Len() > 0 {
		if err := store.WriteJSONL(cfg.ResultsPath); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
		logger.Info().Str("path", cfg.ResultsPath).Int("results", store.Len()).Msg("wrote results")
	}

	p := coord.Progress()
	summary := runSummary{
		Total:        p.Total,
		Succeeded:    p.SuccessCount,
		Failed:       p.FailureCount,
		Cancelled:    p.Cancelled,
		TotalCostUSD: store.TotalCost(),
		ResultsPath:  cfg.ResultsPath,
		Jobs:         coord.Jobs(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
