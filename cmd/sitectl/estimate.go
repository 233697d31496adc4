package main

import (
	"encoding/json"
	"fmt"

	"github.com/santoscsolutions/site/internal/observability"
	"github.com/santoscsolutions/site/internal/pricing"
	"github.com/spf13/cobra"
)

var (
	estimateBedrooms  int
	estimateBathrooms int
	estimateService   string
	estimateZip       string
	estimateJSON      bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Quote a cleaning price range",
	Long:  `Compute the price range and duration the site calculator shows for a home.`,
	Example: `  sitectl estimate --bedrooms 4 --bathrooms 3 --service deep
  sitectl estimate --bedrooms 2 --zip 30075 --json`,
	RunE: runEstimate,
}

var zipCmd = &cobra.Command{
	Use:   "zip <code>",
	Short: "Check whether a ZIP code is in the service area",
	Args:  cobra.ExactArgs(1),
	RunE:  runZip,
}

func init() {
	estimateCmd.Flags().IntVar(&estimateBedrooms, "bedrooms", 3, "Number of bedrooms")
	estimateCmd.Flags().IntVar(&estimateBathrooms, "bathrooms", 2, "Number of bathrooms")
	estimateCmd.Flags().StringVar(&estimateService, "service", string(pricing.Regular), "Service tier: regular, deep or move")
	estimateCmd.Flags().StringVar(&estimateZip, "zip", "", "Optional ZIP code to check against the service area")
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "Print JSON instead of a summary box")
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(zipCmd)
}

// loadEstimator uses the configured price table, or the built-in one.
func loadEstimator() (*pricing.Estimator, error) {
	table := pricing.DefaultTable()
	if cfg.PricingFile != "" {
		var err error
		if table, err = pricing.LoadTable(cfg.PricingFile); err != nil {
			return nil, err
		}
	}
	return pricing.NewEstimator(table)
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	tier, err := pricing.ParseServiceType(estimateService)
	if err != nil {
		return err
	}
	estimator, err := loadEstimator()
	if err != nil {
		return err
	}

	bedrooms, bathrooms := max(estimateBedrooms, 1), max(estimateBathrooms, 1)
	est := estimator.Estimate(bedrooms, bathrooms, tier)

	var status pricing.ZipStatus
	if estimateZip != "" {
		status = pricing.DefaultServiceAreas().ClassifyZip(estimateZip)
	}

	if estimateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			pricing.PriceEstimate
			Bedrooms  int    `json:"bedrooms"`
			Bathrooms int    `json:"bathrooms"`
			Range     string `json:"range"`
			Zip       string `json:"zip,omitempty"`
			ZipStatus string `json:"zip_status,omitempty"`
		}{est, bedrooms, bathrooms, pricing.FormatRange(est), estimateZip, string(status)})
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintEstimate(bedrooms, bathrooms, est, estimateZip, status)
	return nil
}

func runZip(cmd *cobra.Command, args []string) error {
	status := pricing.DefaultServiceAreas().ClassifyZip(args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
	if status == pricing.ZipInvalid {
		return fmt.Errorf("invalid ZIP code %q", args[0])
	}
	return nil
}
