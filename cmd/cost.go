package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"photo-critic/internal/model"
	"photo-critic/internal/pricing"
)

var (
	flagCostInput  int64
	flagCostOutput int64
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the USD cost of a token count",
	Long: `Price a token count against a model's published per-million-token rates.

Useful for budgeting a run: multiply the typical per-photo usage by the
number of photos. Unknown models fall back to the default rate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modelID := flagModel
		if modelID == "" {
			modelID = "claude-sonnet-4-5"
		}
		usage := model.TokenUsage{
			InputTokens:  flagCostInput,
			OutputTokens: flagCostOutput,
		}
		price := pricing.PriceFor(modelID)

		out := struct {
			Model            string  `json:"model"`
			InputTokens      int64   `json:"input_tokens"`
			OutputTokens     int64   `json:"output_tokens"`
			InputPerMTokUSD  float64 `json:"input_per_mtok_usd"`
			OutputPerMTokUSD float64 `json:"output_per_mtok_usd"`
			CostUSD          float64 `json:"cost_usd"`
		}{
			Model:            modelID,
			InputTokens:      usage.InputTokens,
			OutputTokens:     usage.OutputTokens,
			InputPerMTokUSD:  price.InputPerMTok,
			OutputPerMTokUSD: price.OutputPerMTok,
			CostUSD:          pricing.CostOf(modelID, usage),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	costCmd.Flags().Int64Var(&flagCostInput, "input-tokens", 0, "input token count")
	costCmd.Flags().Int64Var(&flagCostOutput, "output-tokens", 0, "output token count")
	rootCmd.AddCommand(costCmd)
}
