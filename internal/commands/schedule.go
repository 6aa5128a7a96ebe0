package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/middleware"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/pipeline"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/schedule"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/statusapi"
)

// NewScheduleCmd creates the schedule command.
func NewScheduleCmd(city cityFunc) *cobra.Command {
	var (
		at     string
		listen string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run an incremental ingestion every day at a fixed local time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clock, err := schedule.ParseClock(at)
			if err != nil {
				return err
			}
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

			st, err := openStore(ctx, c)
			if err != nil {
				return err
			}
			defer st.Close()

			orch := pipeline.New(c, adapter, st)
			out := cmd.OutOrStdout()

			if listen != "" {
				srv := &http.Server{
					Addr:              listen,
					Handler:           statusapi.New(st, orch.Progress, middleware.OriginsFromEnv()),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Printf("[schedule] status server: %v", err)
					}
				}()
				defer func() {
					shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
					defer done()
					_ = srv.Shutdown(shutdownCtx)
				}()
				fmt.Fprintf(out, "status server listening on %s\n", listen)
			}

			fmt.Fprintf(out, "%s: incremental run daily at %s, next at %s\n",
				c.Name, clock, schedule.NextRun(clock, time.Now()).Format(time.RFC3339))

			err = schedule.Daily(ctx, clock, func(ctx context.Context) error {
				run, err := orch.Run(ctx, pipeline.Incremental)
				printRun(out, run)
				return err
			})
			if errors.Is(err, context.Canceled) {
				color.New(color.FgYellow).Fprintln(out, "\nshutting down...")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&at, "at", "06:00", "local time of day to run (HH:MM)")
	cmd.Flags().StringVar(&listen, "listen", "", "address for the read-only status HTTP server, e.g. :8080")
	return cmd
}
