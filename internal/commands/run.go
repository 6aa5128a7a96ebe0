package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/pipeline"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/source"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store/memstore"
)

// NewBackfillCmd creates the backfill command.
func NewBackfillCmd(city cityFunc) *cobra.Command {
	return newRunCmd(city, pipeline.Backfill, "backfill", "Fetch the full permit history, store and enrich it")
}

// NewIncrementalCmd creates the incremental command.
func NewIncrementalCmd(city cityFunc) *cobra.Command {
	return newRunCmd(city, pipeline.Incremental, "incremental", "Fetch permits issued after the stored watermark, store and enrich them")
}

func newRunCmd(city cityFunc, mode pipeline.Mode, use, short string) *cobra.Command {
	var dryRun bool
	var top int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := city()
			if err != nil {
				return err
			}
			adapter, err := newAdapter(c)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if dryRun {
				return runDry(ctx, cmd.OutOrStdout(), c, adapter, mode, top)
			}
			return runPersistent(ctx, cmd.OutOrStdout(), c, adapter, mode)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run against an in-memory store and print the resulting projects")
	cmd.Flags().IntVar(&top, "top", 10, "number of projects to print with --dry-run")
	return cmd
}

// NewEnrichCmd creates the enrich command.
func NewEnrichCmd(city cityFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Rebuild submarket assignments for every stored permit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := city()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runPersistent(ctx, cmd.OutOrStdout(), c, nil, pipeline.EnrichOnly)
		},
	}
}

func runPersistent(ctx context.Context, out io.Writer, c market.City, adapter source.Adapter, mode pipeline.Mode) error {
	st, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := pipeline.New(c, adapter, st).Run(ctx, mode)
	printRun(out, run)
	return err
}

// runDry executes the pipeline against memstore and prints what the
// project and delivery views would contain.
func runDry(ctx context.Context, out io.Writer, c market.City, adapter source.Adapter, mode pipeline.Mode, top int) error {
	mem := memstore.New(c, nil)
	run, err := pipeline.New(c, adapter, mem).Run(ctx, mode)
	printRun(out, run)
	if err != nil {
		return err
	}

	projects, _ := mem.Projects(ctx, 0)
	deliveries, _ := mem.Deliveries(ctx)
	bold := color.New(color.Bold)

	fmt.Fprintln(out)
	bold.Fprintf(out, "Projects: %d (dry run, nothing written)\n", len(projects))
	for i, p := range projects {
		if i == top {
			fmt.Fprintf(out, "  ... %d more\n", len(projects)-top)
			break
		}
		sub := p.SubmarketName
		if sub == "" {
			sub = "Unknown"
		}
		fmt.Fprintf(out, "  %-10s %-16s %5d units  %-28s %s\n",
			p.IssueDate.Format("2006-01-02"), p.ProjectKey, p.TotalUnits, sub, p.Address)
	}

	fmt.Fprintln(out)
	bold.Fprintf(out, "Deliveries: %d submarket-quarters\n", len(deliveries))
	for _, d := range deliveries {
		fmt.Fprintf(out, "  %-8s %-28s %3d projects %6d units\n",
			d.DeliveryYYYYQ, d.SubmarketName, d.ProjectCount, d.TotalUnitsDelivered)
	}
	return nil
}

func printRun(out io.Writer, run store.PipelineRun) {
	state := color.GreenString(run.State)
	if run.State == string(pipeline.StateFailed) {
		state = color.RedString(run.State)
	}
	fmt.Fprintf(out, "%s %s run %s: %s in %.1fs\n", run.City, run.RunType, run.ID, state, run.DurationSecs)
	fmt.Fprintf(out, "  fetched=%d parsed=%d rejected=%d new=%d enriched=%d\n",
		run.RecordsFetched, run.RecordsParsed, run.RecordsRejected, run.RecordsNew, run.RecordsEnriched)
	if run.Errors != nil {
		fmt.Fprintf(out, "  errors: %s\n", *run.Errors)
	}
}
