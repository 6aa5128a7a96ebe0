package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewSetupCmd creates the setup command.
func NewSetupCmd(city cityFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the schema, tables and views and load the ZIP crosswalk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := city()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, err := openStore(ctx, c)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			n, err := st.LoadCrosswalk(ctx, c.Crosswalk())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "✓ %s schema %q ready\n", c.Label, c.Schema)
			fmt.Fprintf(out, "  crosswalk: %d ZIP codes\n", n)
			return nil
		},
	}
}
