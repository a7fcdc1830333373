package listview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/pkg/pagination"
	"github.com/ivankomartin/deposit-console/pkg/tracing"
)

const tracerName = "github.com/ivankomartin/deposit-console/internal/listview"

// ProductSource lists products page by page.
type ProductSource interface {
	ListProducts(ctx context.Context, q domain.ProductsQuery) (*domain.ProductPage, error)
}

// SearchBudget bounds one aggregation run.
type SearchBudget struct {
	MaxPages int
	PageSize int
}

// DefaultSearchBudget scans at most 4 pages of 300 products.
func DefaultSearchBudget() SearchBudget {
	return SearchBudget{MaxPages: 4, PageSize: 300}
}

// SearchRequest is the input of one aggregation run. NameQuery and CompanyID
// are the debounced filter values.
type SearchRequest struct {
	NameQuery string
	CompanyID string
	Status    domain.Status
	Sort      domain.SortField
	Order     domain.SortOrder
	Page      int
	Limit     int
}

// searchRequest builds the aggregation input for q with the given filters.
func searchRequest(q Query, nameQuery, companyID string) SearchRequest {
	return SearchRequest{
		NameQuery: nameQuery,
		CompanyID: companyID,
		Status:    q.Status,
		Sort:      q.Sort,
		Order:     q.Order,
		Page:      q.Page,
		Limit:     q.Limit,
	}
}

// SearchResult is the virtual page cut out of the scanned matches. Totals
// only count what the scan saw.
type SearchResult struct {
	Rows         []domain.Product `json:"rows"`
	Matches      int              `json:"matches"`
	PagesScanned int              `json:"pagesScanned"`
	// Exhausted is set when the source reported no further pages, so the
	// totals are exact.
	Exhausted  bool `json:"exhausted"`
	TotalItems int  `json:"totalItems"`
	TotalPages int  `json:"totalPages"`
}

// Aggregator emulates name and company filtering the product API lacks by
// scanning its pages and filtering locally.
type Aggregator struct {
	source ProductSource
	budget SearchBudget
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. Non-positive budget fields fall back to
// DefaultSearchBudget.
func NewAggregator(source ProductSource, budget SearchBudget, logger *slog.Logger) *Aggregator {
	def := DefaultSearchBudget()
	if budget.MaxPages < 1 {
		budget.MaxPages = def.MaxPages
	}
	if budget.PageSize < 1 {
		budget.PageSize = def.PageSize
	}
	return &Aggregator{source: source, budget: budget, logger: logger}
}

// Budget returns the scan bounds.
func (a *Aggregator) Budget() SearchBudget {
	return a.budget
}

// Search scans source pages in ascending order until the matches cover the
// requested virtual page, the source runs out, or the budget is spent.
// Running out of budget is not an error; later virtual pages are just empty.
func (a *Aggregator) Search(ctx context.Context, req SearchRequest) (res *SearchResult, err error) {
	want := pagination.Params{Page: max(req.Page, 1), Limit: max(req.Limit, 1)}

	ctx, span := tracing.Tracer(tracerName).Start(ctx, "listview.search")
	span.SetAttributes(
		attribute.String("search.status", string(req.Status)),
		attribute.Bool("search.has_name", req.NameQuery != ""),
		attribute.String("search.company_id", req.CompanyID),
		attribute.Int("search.page", want.Page),
		attribute.Int("search.limit", want.Limit),
		attribute.Int("search.max_pages", a.budget.MaxPages),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		case err != nil:
			outcome = "error"
		default:
			span.SetAttributes(
				attribute.Int("search.pages_scanned", res.PagesScanned),
				attribute.Int("search.matches", res.Matches),
			)
			searchPagesScanned.Observe(float64(res.PagesScanned))
		}
		searchRuns.WithLabelValues(outcome).Inc()
		searchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}()

	match := matcher(req.NameQuery, req.CompanyID)
	var acc []domain.Product
	res = &SearchResult{}

	for p := 1; p <= a.budget.MaxPages; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := a.source.ListProducts(ctx, domain.ProductsQuery{
			Page:   p,
			Limit:  a.budget.PageSize,
			Active: req.Status.Active(),
			Sort:   req.Sort,
			Order:  req.Order,
		})
		if err != nil {
			return nil, fmt.Errorf("scan page %d: %w", p, err)
		}
		res.PagesScanned = p

		for _, row := range page.Data {
			if match(row) {
				acc = append(acc, row)
			}
		}

		res.Exhausted = !page.Pagination.HasNextPage
		if len(acc) >= want.End() || res.Exhausted {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Rows = pagination.Slice(acc, want)
	res.Matches = len(acc)
	res.TotalItems = len(acc)
	res.TotalPages = pagination.TotalPages(len(acc), want.Limit)
	if !res.Exhausted && len(acc) >= want.End() {
		// Stopped on coverage with more source pages left: keep the next
		// virtual page reachable.
		res.TotalPages = max(res.TotalPages, want.Page+1)
	}

	a.logger.DebugContext(ctx, "search run finished",
		slog.Int("pages_scanned", res.PagesScanned),
		slog.Int("matches", res.Matches),
		slog.Bool("exhausted", res.Exhausted),
	)
	return res, nil
}

// Matches reports whether p passes the name and company filters. The name
// filter is a case-insensitive substring test, the company filter an exact
// comparison of the decimal id. Empty filters match everything.
func Matches(p domain.Product, nameQuery, companyID string) bool {
	return matcher(nameQuery, companyID)(p)
}

func matcher(nameQuery, companyID string) func(domain.Product) bool {
	needle := strings.ToLower(nameQuery)
	return func(p domain.Product) bool {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			return false
		}
		if companyID != "" && p.CompanyKey() != companyID {
			return false
		}
		return true
	}
}
