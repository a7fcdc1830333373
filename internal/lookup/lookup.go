// Package lookup finds a single product by id. The product API has no by-id
// endpoint, so the finder checks the query cache first and then scans list
// pages with a bounded, cancellable task.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/listview"
	"github.com/ivankomartin/deposit-console/internal/querycache"
	apperrors "github.com/ivankomartin/deposit-console/pkg/errors"
	"github.com/ivankomartin/deposit-console/pkg/tracing"
)

const tracerName = "github.com/ivankomartin/deposit-console/internal/lookup"

// ErrNotFound is returned when neither the cache nor a full scan contains the
// product. It is terminal; retrying the same scan will not help.
var ErrNotFound = fmt.Errorf("product not in cache or scanned pages: %w", apperrors.ErrNotFound)

// ErrPending is returned by Task.Result before the task finished.
var ErrPending = errors.New("lookup still running")

// scanStatuses is the order in which status filters are scanned. Unfiltered
// first, then inactive, because new products are created inactive.
var scanStatuses = []domain.Status{domain.StatusAll, domain.StatusInactive, domain.StatusActive}

// Budget bounds the fallback scan per status.
type Budget struct {
	MaxPages int
	PageSize int
}

// DefaultBudget scans 6 pages of 50 products per status.
func DefaultBudget() Budget {
	return Budget{MaxPages: 6, PageSize: 50}
}

// Steps is the most source requests one task can make.
func (b Budget) Steps() int {
	return len(scanStatuses) * b.MaxPages
}

// ProductKey is the cache key of a single product.
func ProductKey(id int64) querycache.Key[domain.Product] {
	return querycache.NewKey[domain.Product]("product", strconv.FormatInt(id, 10))
}

// Finder resolves products by id.
type Finder struct {
	source listview.ProductSource
	cache  *querycache.Cache
	budget Budget
	logger *slog.Logger
}

// NewFinder creates a Finder. Non-positive budget fields fall back to
// DefaultBudget.
func NewFinder(source listview.ProductSource, cache *querycache.Cache, budget Budget, logger *slog.Logger) *Finder {
	def := DefaultBudget()
	if budget.MaxPages <= 0 {
		budget.MaxPages = def.MaxPages
	}
	if budget.PageSize <= 0 {
		budget.PageSize = def.PageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{source: source, cache: cache, budget: budget, logger: logger}
}

// Budget returns the effective scan budget.
func (f *Finder) Budget() Budget {
	return f.budget
}

// Cached looks the product up in the cache only: its own entry first, then
// every cached list page. A hit in a list page is seeded under ProductKey.
func (f *Finder) Cached(ctx context.Context, id int64) (*domain.Product, bool) {
	if p, ok := querycache.Peek(ctx, f.cache, ProductKey(id)); ok {
		return &p, true
	}

	var found *domain.Product
	err := querycache.Scan(ctx, f.cache, listview.ListKeyPrefix, func(_ string, page domain.ProductPage) bool {
		for i := range page.Data {
			if page.Data[i].ID == id {
				p := page.Data[i]
				found = &p
				return false
			}
		}
		return true
	})
	if err != nil {
		f.logger.WarnContext(ctx, "scan cached list pages", slog.String("error", err.Error()))
	}
	if found == nil {
		return nil, false
	}
	f.seed(ctx, *found)
	return found, true
}

// Start returns a task resolving id. A cache hit yields a task that is
// already done; otherwise the fallback scan runs in the background until it
// finds the product, spends its budget, fails, or is cancelled through ctx or
// Task.Cancel.
func (f *Finder) Start(ctx context.Context, id int64) *Task {
	t := &Task{id: id, done: make(chan struct{})}
	if p, ok := f.Cached(ctx, id); ok {
		lookups.WithLabelValues("cached").Inc()
		t.cancel = func() {}
		t.finish(p, nil)
		return t
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go func() {
		defer cancel()
		p, err := f.scan(ctx, t, id)
		t.finish(p, err)
	}()
	return t
}

// Find resolves id and waits for the result. Cancelling ctx cancels the scan.
func (f *Finder) Find(ctx context.Context, id int64) (*domain.Product, error) {
	t := f.Start(ctx, id)
	select {
	case <-t.Done():
		return t.Result()
	case <-ctx.Done():
		t.Cancel()
		<-t.Done()
		return nil, ctx.Err()
	}
}

func (f *Finder) scan(ctx context.Context, t *Task, id int64) (p *domain.Product, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "lookup.scan")
	span.SetAttributes(
		attribute.Int64("product.id", id),
		attribute.Int("lookup.max_steps", f.budget.Steps()),
	)
	defer func() {
		outcome := "found"
		switch {
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		case errors.Is(err, ErrNotFound):
			outcome = "not_found"
		case err != nil:
			outcome = "error"
		}
		span.SetAttributes(attribute.Int("lookup.steps", t.Steps()))
		lookups.WithLabelValues(outcome).Inc()
		// Not found is an answer, not a span failure.
		if errors.Is(err, ErrNotFound) {
			tracing.EndSpan(span, nil)
			return
		}
		tracing.EndSpan(span, err)
	}()

	for _, status := range scanStatuses {
		for page := 1; page <= f.budget.MaxPages; page++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := f.source.ListProducts(ctx, domain.ProductsQuery{
				Page:   page,
				Limit:  f.budget.PageSize,
				Active: status.Active(),
				Sort:   domain.SortByRegisteredAt,
				Order:  domain.OrderDesc,
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, fmt.Errorf("scan %s page %d: %w", status, page, err)
			}
			t.step()

			for i := range res.Data {
				if res.Data[i].ID != id {
					continue
				}
				found := res.Data[i]
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				f.seed(ctx, found)
				return &found, nil
			}
			if !res.Pagination.HasNextPage {
				break
			}
		}
	}

	f.logger.InfoContext(ctx, "product not found by scan",
		slog.Int64("product_id", id),
		slog.Int("steps", t.Steps()),
	)
	return nil, ErrNotFound
}

func (f *Finder) seed(ctx context.Context, p domain.Product) {
	if err := querycache.Set(ctx, f.cache, ProductKey(p.ID), p); err != nil {
		f.logger.WarnContext(ctx, "seed product cache",
			slog.Int64("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Task is one by-id resolution.
type Task struct {
	id     int64
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	steps   int
	product *domain.Product
	err     error
}

// ID returns the product id being resolved.
func (t *Task) ID() int64 { return t.id }

// Done is closed once the task finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the scan. A cancelled task never writes to the cache and
// finishes with context.Canceled.
func (t *Task) Cancel() { t.cancel() }

// Result returns the outcome once Done is closed, ErrPending before.
func (t *Task) Result() (*domain.Product, error) {
	select {
	case <-t.done:
	default:
		return nil, ErrPending
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.product, t.err
}

// Steps returns the number of source pages read so far.
func (t *Task) Steps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.steps
}

func (t *Task) step() {
	t.mu.Lock()
	t.steps++
	t.mu.Unlock()
}

func (t *Task) finish(p *domain.Product, err error) {
	t.mu.Lock()
	t.product, t.err = p, err
	t.mu.Unlock()
	close(t.done)
}
