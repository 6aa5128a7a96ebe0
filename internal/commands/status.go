package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/pipeline"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(city cityFunc) *cobra.Command {
	var (
		top     int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show counts, match rate, the last run and the top submarkets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := city()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top") {
				top = c.TopSubmarkets
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := openStore(ctx, c)
			if err != nil {
				return err
			}
			defer st.Close()

			status, err := st.Status(ctx, top)
			if err != nil {
				return fmt.Errorf("reading status: %w", err)
			}
			if jsonOut {
				return writeStatusJSON(cmd.OutOrStdout(), status)
			}
			printStatus(cmd.OutOrStdout(), c.Label, status)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of submarkets to list (default: the city's setting)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
	return cmd
}

func writeStatusJSON(out io.Writer, st store.Status) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		store.Status
		MatchRate float64 `json:"match_rate"`
	}{st, st.MatchRate()})
}

func printStatus(out io.Writer, label string, st store.Status) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "%s permits\n", label)

	if st.LastRun == nil {
		fmt.Fprintln(out, "  last run:   none")
	} else {
		r := st.LastRun
		state := color.GreenString(r.State)
		if r.State == string(pipeline.StateFailed) {
			state = color.RedString(r.State)
		}
		fmt.Fprintf(out, "  last run:   %s %s at %s (%.1fs)\n", r.RunType, state, r.RunAt.Format(time.RFC3339), r.DurationSecs)
		fmt.Fprintf(out, "              fetched=%d new=%d rejected=%d enriched=%d\n",
			r.RecordsFetched, r.RecordsNew, r.RecordsRejected, r.RecordsEnriched)
		if r.Errors != nil {
			fmt.Fprintf(out, "              errors: %s\n", color.RedString(*r.Errors))
		}
	}

	fmt.Fprintf(out, "  raw:        %d\n", st.RawPermits)
	fmt.Fprintf(out, "  enriched:   %d\n", st.EnrichedPermits)
	fmt.Fprintf(out, "  matched:    %d (%.1f%%)\n", st.MatchedPermits, 100*st.MatchRate())
	fmt.Fprintf(out, "  projects:   %d\n", st.Projects)
	if st.EarliestIssue != nil && st.LatestIssue != nil {
		fmt.Fprintf(out, "  issued:     %s .. %s\n", st.EarliestIssue.Format("2006-01-02"), st.LatestIssue.Format("2006-01-02"))
	}
	if st.TotalAreaSF != nil && st.AvgAreaSF != nil {
		fmt.Fprintf(out, "  area:       %d sf total, %.0f sf average\n", *st.TotalAreaSF, *st.AvgAreaSF)
	}

	if len(st.TopSubmarkets) > 0 {
		fmt.Fprintln(out)
		bold.Fprintln(out, "Top submarkets by units:")
		for _, s := range st.TopSubmarkets {
			fmt.Fprintf(out, "  %-32s %4d projects %7d units\n", s.SubmarketName, s.Projects, s.Units)
		}
	}
}
