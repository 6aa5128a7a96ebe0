package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/boundary"
)

// NewLoadBoundariesCmd creates the load-boundaries command.
func NewLoadBoundariesCmd(city cityFunc) *cobra.Command {
	cfg := boundary.Config{}

	cmd := &cobra.Command{
		Use:   "load-boundaries",
		Short: "Upsert submarket polygons from a GeoJSON FeatureCollection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := city()
			if err != nil {
				return err
			}
			cfg.City = c
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var loader boundary.Loader
			if !cfg.DryRun {
				st, err := openStore(ctx, c)
				if err != nil {
					return err
				}
				defer st.Close()
				loader = st
			}

			res, err := boundary.Run(ctx, cfg, loader)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: parsed %d submarkets, loaded %d\n", c.Name, res.Parsed, res.Loaded)
			if len(res.Outside) > 0 {
				fmt.Fprintf(out, "  outside metro area: %s\n", strings.Join(res.Outside, ", "))
			}
			if res.Loaded > 0 {
				fmt.Fprintln(out, "  run `permits enrich` to reassign permits")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.Path, "file", "", "GeoJSON FeatureCollection of submarket polygons")
	cmd.Flags().StringVar(&cfg.IDProp, "id-prop", boundary.DefaultIDProp, "feature property holding the submarket id")
	cmd.Flags().StringVar(&cfg.NameProp, "name-prop", boundary.DefaultNameProp, "feature property holding the submarket name")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "parse and validate without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
