package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ivankomartin/deposit-console/internal/app"
	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/listview"
	"github.com/ivankomartin/deposit-console/internal/service"
	"github.com/ivankomartin/deposit-console/internal/tui"
	apperrors "github.com/ivankomartin/deposit-console/pkg/errors"
	"github.com/ivankomartin/deposit-console/pkg/validator"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newProductsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"p"},
		Short:   "List, show, and register products",
	}
	cmd.AddCommand(
		newProductsListCmd(opts),
		newProductsShowCmd(opts),
		newProductsCreateCmd(opts),
		newProductsSeedCmd(opts),
	)
	return cmd
}

// ============================================================================
// products list
// ============================================================================

type listFlags struct {
	status  string
	page    int
	limit   int
	sort    string
	order   string
	name    string
	company string
	output  string
}

func (f *listFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.status, "status", string(domain.StatusAll), "all, active, or inactive")
	fs.IntVar(&f.page, "page", 1, "page number")
	fs.IntVar(&f.limit, "limit", listview.DefaultLimit, "rows per page (10, 25, 50, 100)")
	fs.StringVar(&f.sort, "sort", string(domain.SortByRegisteredAt), "name or registeredAt")
	fs.StringVar(&f.order, "order", string(domain.OrderDesc), "asc or desc")
	fs.StringVarP(&f.name, "name", "q", "", "case-insensitive name filter")
	fs.StringVar(&f.company, "company", "", "company id filter")
}

// values maps the flags onto the list query string the browser would use.
func (f listFlags) values() url.Values {
	v := url.Values{}
	v.Set(listview.ParamStatus, f.status)
	v.Set(listview.ParamPage, strconv.Itoa(f.page))
	v.Set(listview.ParamLimit, strconv.Itoa(f.limit))
	v.Set(listview.ParamSort, f.sort)
	v.Set(listview.ParamOrder, f.order)
	if f.name != "" {
		v.Set(listview.ParamQ, f.name)
	}
	if f.company != "" {
		v.Set(listview.ParamCompanyID, f.company)
	}
	return listview.Encode(listview.Decode(v))
}

func newProductsListCmd(opts *rootOptions) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of the product list",
		Long: `Print one page of the product list. Without --name and --company the
page comes straight from the product API. With either filter the console
scans a bounded number of API pages and filters them locally, so totals
may be approximate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.cliLogger(cmd)
			return opts.withConsole(cmd, log, func(c *app.Console) error {
				view, err := loadView(cmd.Context(), c, f.values())
				if err != nil {
					return err
				}
				if f.output == outputJSON {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				companies := companyNames(cmd.Context(), c)
				fmt.Fprintln(cmd.OutOrStdout(), productTable(view.Rows, companies))
				fmt.Fprintln(cmd.OutOrStdout(), tui.StatusLine(view))
				return nil
			})
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVarP(&f.output, "output", "o", outputTable, "table or json")
	return cmd
}

// loadView runs a list controller over query until it settles.
func loadView(ctx context.Context, c *app.Console, query url.Values) (listview.View, error) {
	ctrl := c.NewController(listview.NewMemoryLocation(query.Encode()))
	defer ctrl.Close()
	ctrl.FlushInput()

	if err := ctrl.WaitIdle(ctx); err != nil {
		return listview.View{}, err
	}
	view := ctrl.View()
	if view.IsError {
		return view, fmt.Errorf("list products: %w", view.Err)
	}
	return view, nil
}

// companyNames resolves company ids for display. Failures leave the map
// empty and the table falls back to ids.
func companyNames(ctx context.Context, c *app.Console) map[int64]string {
	names := make(map[int64]string)
	companies, err := c.Catalog.Companies(ctx)
	if err != nil {
		return names
	}
	for _, co := range companies {
		names[co.ID] = co.Name
	}
	return names
}

// ============================================================================
// products show
// ============================================================================

func newProductsShowCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one product by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			log := opts.cliLogger(cmd)
			return opts.withConsole(cmd, log, func(c *app.Console) error {
				detail, err := c.Catalog.ProductDetail(cmd.Context(), id)
				if apperrors.IsNotFound(err) {
					b := c.Finder.Budget()
					return fmt.Errorf("product #%d not found in the cache or the newest %d products of each status",
						id, b.MaxPages*b.PageSize)
				}
				if err != nil {
					return err
				}
				if output == outputJSON {
					return writeJSON(cmd.OutOrStdout(), detail)
				}
				fmt.Fprintln(cmd.OutOrStdout(), tui.DetailPanel(*detail.Product, detail.CompanyName))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "table or json")
	return cmd
}

// ============================================================================
// products create
// ============================================================================

func newProductsCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		in        domain.NewProduct
		packaging string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new product",
		Long: `Register a new product with the product API. New products start
inactive. Deposit is given in cents and volume in millilitres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Packaging = domain.Packaging(packaging)
			log := opts.cliLogger(cmd)
			return opts.withConsole(cmd, log, func(c *app.Console) error {
				res, err := c.Catalog.CreateProduct(cmd.Context(), in)
				var verr *validator.ValidationError
				if errors.As(err, &verr) {
					for field, msg := range verr.Fields() {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
					}
					return errors.New("product is invalid")
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "product name")
	cmd.Flags().StringVar(&packaging, "packaging", "", "pet, can, glass, tetra, or other")
	cmd.Flags().Int64Var(&in.Deposit, "deposit", 0, "deposit in cents")
	cmd.Flags().Int64Var(&in.Volume, "volume", 0, "volume in millilitres")
	cmd.Flags().Int64Var(&in.CompanyID, "company", 0, "owning company id")
	cmd.Flags().Int64Var(&in.RegisteredByID, "registered-by", 0, "id of the registering user")
	return cmd
}

// ============================================================================
// products seed
// ============================================================================

func newProductsSeedCmd(opts *rootOptions) *cobra.Command {
	var so service.SeedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register generated demo products",
		Long: `Register generated deposit products under the companies and users the
product API already knows. The same --seed produces the same products.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.cliLogger(cmd)
			return opts.withConsole(cmd, log, func(c *app.Console) error {
				created, err := c.Catalog.Seed(cmd.Context(), so)
				fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d products\n", created, so.Count)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&so.Count, "count", "n", 100, "number of products")
	cmd.Flags().IntVar(&so.Concurrency, "concurrency", 4, "parallel create requests")
	cmd.Flags().Uint64Var(&so.Seed, "seed", 1, "generator seed")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
