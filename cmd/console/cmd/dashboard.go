package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivankomartin/deposit-console/internal/app"
)

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print catalog totals and the newest active products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.cliLogger(cmd)
			return opts.withConsole(cmd, log, func(c *app.Console) error {
				d, err := c.Catalog.Dashboard(cmd.Context())
				if err != nil {
					return err
				}
				if output == outputJSON {
					return writeJSON(cmd.OutOrStdout(), d)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Products:  %d (%d active, %d inactive)\n", d.TotalProducts, d.ActiveProducts, d.InactiveProducts)
				fmt.Fprintf(w, "Companies: %d\n", d.Companies)
				fmt.Fprintf(w, "Users:     %d\n\n", d.Users)
				fmt.Fprintln(w, "Newest active products")
				fmt.Fprintln(w, productTable(d.RecentActive, companyNames(cmd.Context(), c)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "table or json")
	return cmd
}
