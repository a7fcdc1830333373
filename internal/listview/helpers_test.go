package listview

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/pkg/pagination"
)

// fakeSource serves products in id order and records every request. hook,
// when set, runs before each response and may block or fail it.
type fakeSource struct {
	mu       sync.Mutex
	products []domain.Product
	queries  []domain.ProductsQuery
	hook     func(ctx context.Context, q domain.ProductsQuery) error
	failWith error
}

func newFakeSource(products []domain.Product) *fakeSource {
	return &fakeSource{products: products}
}

func (f *fakeSource) ListProducts(ctx context.Context, q domain.ProductsQuery) (*domain.ProductPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	hook := f.hook
	failWith := f.failWith
	rows := slices.Clone(f.products)
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, q); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failWith != nil {
		return nil, failWith
	}

	if q.Active != nil {
		rows = slices.DeleteFunc(rows, func(p domain.Product) bool { return p.Active != *q.Active })
	}
	params := pagination.Params{Page: q.Page, Limit: q.Limit}
	return &domain.ProductPage{
		Data:       pagination.Slice(rows, params),
		Pagination: pagination.NewInfo(len(rows), params),
	}, nil
}

func (f *fakeSource) setHook(hook func(ctx context.Context, q domain.ProductsQuery) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeSource) calls() []domain.ProductsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

func (f *fakeSource) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = nil
}

// catalog builds n products named "Item <id>" with ids 1..n, all active,
// spread over companies 1..3.
func catalog(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		id := int64(i + 1)
		out[i] = domain.Product{
			ID:        id,
			CompanyID: id%3 + 1,
			Name:      "Item " + strconv.FormatInt(id, 10),
			Packaging: domain.PackagingCan,
			Deposit:   25,
			Volume:    330,
			Active:    true,
		}
	}
	return out
}

// rename gives the product with id a new name.
func rename(products []domain.Product, id int64, name string) []domain.Product {
	for i := range products {
		if products[i].ID == id {
			products[i].Name = name
		}
	}
	return products
}

func ids(rows []domain.Product) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
