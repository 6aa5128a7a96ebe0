// Package commands implements the CLI subcommands for the permits binary.
package commands

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"

	// adapters register themselves with the source registry
	_ "github.com/rwaterhouse1/austin-mf-intelligence/internal/source/ckan"
	_ "github.com/rwaterhouse1/austin-mf-intelligence/internal/source/socrata"
)

var version = "dev"

// defaultCity is the --city default: PERMITS_CITY, else austin.
func defaultCity() string {
	if c := strings.TrimSpace(os.Getenv("PERMITS_CITY")); c != "" {
		return strings.ToLower(c)
	}
	return "austin"
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var cityName string

	root := &cobra.Command{
		Use:   "permits",
		Short: "Multifamily permit ingestion and submarket enrichment",
		Long: `permits pulls new-construction multifamily building permits from each
city's open-data portal, keeps them idempotently in Postgres, assigns every
permit a submarket (polygon first, then ZIP crosswalk) and maintains the
deduplicated project and quarterly delivery views.

Cities: ` + strings.Join(market.Names(), ", "),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cityName, "city", defaultCity(), "city to operate on ("+strings.Join(market.Names(), "|")+")")

	city := func() (market.City, error) { return market.Lookup(strings.ToLower(cityName)) }

	root.AddCommand(
		NewSetupCmd(city),
		NewBackfillCmd(city),
		NewIncrementalCmd(city),
		NewEnrichCmd(city),
		NewScheduleCmd(city),
		NewStatusCmd(city),
		NewLoadBoundariesCmd(city),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
