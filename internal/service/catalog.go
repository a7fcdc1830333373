package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/event"
	"github.com/ivankomartin/deposit-console/internal/listview"
	"github.com/ivankomartin/deposit-console/internal/lookup"
	"github.com/ivankomartin/deposit-console/internal/querycache"
	"github.com/ivankomartin/deposit-console/pkg/validator"
)

// DefaultReferenceStaleTime is how long company and user lists stay fresh.
const DefaultReferenceStaleTime = 10 * time.Minute

// RecentActiveLimit is the number of recent active products on the dashboard.
const RecentActiveLimit = 5

// ProductAPI is the part of the product API the catalog uses.
type ProductAPI interface {
	listview.ProductSource
	ListCompanies(ctx context.Context) ([]domain.Company, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateProduct(ctx context.Context, in domain.NewProduct) (*domain.Product, error)
}

var (
	companiesKey = querycache.NewKey[[]domain.Company]("companies", "list")
	usersKey     = querycache.NewKey[[]domain.User]("users", "list")
	totalKey     = querycache.NewKey[domain.ProductPage](listview.RootProducts, "dashboard", "total")
	recentKey    = querycache.NewKey[domain.ProductPage](listview.RootProducts, "dashboard", "recent-active")
)

// CreateError is a failed product creation. It is reported apart from list
// errors and wraps the validation or API error.
type CreateError struct {
	Err error
}

func (e *CreateError) Error() string {
	return "create product: " + e.Err.Error()
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// CreateResult is a created product with the confirmation shown to the user.
type CreateResult struct {
	Product *domain.Product `json:"product"`
	Message string          `json:"message"`
}

// ProductDetail is a product with its company name resolved.
type ProductDetail struct {
	Product     *domain.Product `json:"product"`
	CompanyName string          `json:"companyName"`
}

// Dashboard summarises the catalog.
type Dashboard struct {
	TotalProducts    int              `json:"totalProducts"`
	ActiveProducts   int              `json:"activeProducts"`
	InactiveProducts int              `json:"inactiveProducts"`
	Companies        int              `json:"companies"`
	Users            int              `json:"users"`
	RecentActive     []domain.Product `json:"recentActive"`
}

// Options configures a Catalog.
type Options struct {
	API                ProductAPI
	Cache              *querycache.Cache
	Finder             *lookup.Finder
	Audit              event.Publisher
	ListStaleTime      time.Duration
	ReferenceStaleTime time.Duration
	Logger             *slog.Logger
}

// Catalog implements the console operations outside the product list.
type Catalog struct {
	api            ProductAPI
	cache          *querycache.Cache
	finder         *lookup.Finder
	audit          event.Publisher
	listStale      time.Duration
	referenceStale time.Duration
	logger         *slog.Logger
}

// NewCatalog creates a Catalog.
func NewCatalog(opts Options) *Catalog {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = querycache.NewMemory(opts.Logger)
	}
	if opts.Finder == nil {
		opts.Finder = lookup.NewFinder(opts.API, opts.Cache, lookup.DefaultBudget(), opts.Logger)
	}
	if opts.Audit == nil {
		opts.Audit = event.Nop{}
	}
	if opts.ListStaleTime <= 0 {
		opts.ListStaleTime = listview.DefaultStaleTime
	}
	if opts.ReferenceStaleTime <= 0 {
		opts.ReferenceStaleTime = DefaultReferenceStaleTime
	}
	return &Catalog{
		api:            opts.API,
		cache:          opts.Cache,
		finder:         opts.Finder,
		audit:          opts.Audit,
		listStale:      opts.ListStaleTime,
		referenceStale: opts.ReferenceStaleTime,
		logger:         opts.Logger,
	}
}

// CreateProduct validates and creates a product. The product is seeded under
// its id, every product list is invalidated, and an audit event is published.
// Failures are returned as *CreateError.
func (s *Catalog) CreateProduct(ctx context.Context, in domain.NewProduct) (*CreateResult, error) {
	if err := validator.Validate(in); err != nil {
		return nil, &CreateError{Err: err}
	}

	product, err := s.api.CreateProduct(ctx, in)
	if err != nil {
		return nil, &CreateError{Err: err}
	}

	if err := querycache.Set(ctx, s.cache, lookup.ProductKey(product.ID), *product); err != nil {
		s.logger.WarnContext(ctx, "seed created product",
			slog.Int64("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.cache.Invalidate(ctx, listview.RootProducts); err != nil {
		s.logger.WarnContext(ctx, "invalidate product lists", slog.String("error", err.Error()))
	}

	if err := s.audit.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.Int64("product_id", product.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", product.ID),
		slog.Int64("company_id", product.CompanyID),
	)

	return &CreateResult{
		Product: product,
		Message: fmt.Sprintf("#%d – %s created as inactive", product.ID, product.Name),
	}, nil
}

// Companies returns every company.
func (s *Catalog) Companies(ctx context.Context) ([]domain.Company, error) {
	companies, err := querycache.Fetch(ctx, s.cache, companiesKey, s.referenceStale, s.api.ListCompanies)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// Users returns every user.
func (s *Catalog) Users(ctx context.Context) ([]domain.User, error) {
	users, err := querycache.Fetch(ctx, s.cache, usersKey, s.referenceStale, s.api.ListUsers)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CompanyName resolves a company id to its name, falling back to
// "Company #<id>" when the company is unknown or the list cannot be loaded.
func (s *Catalog) CompanyName(ctx context.Context, id int64) string {
	companies, err := s.Companies(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "resolve company name", slog.String("error", err.Error()))
	}
	for _, c := range companies {
		if c.ID == id && c.Name != "" {
			return c.Name
		}
	}
	return fmt.Sprintf("Company #%d", id)
}

// ProductDetail finds a product by id and resolves its company. A product
// that is neither cached nor found by the scan yields lookup.ErrNotFound.
func (s *Catalog) ProductDetail(ctx context.Context, id int64) (*ProductDetail, error) {
	product, err := s.finder.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find product %d: %w", id, err)
	}
	return &ProductDetail{
		Product:     product,
		CompanyName: s.CompanyName(ctx, product.CompanyID),
	}, nil
}

// StartLookup starts a cancellable by-id lookup.
func (s *Catalog) StartLookup(ctx context.Context, id int64) *lookup.Task {
	return s.finder.Start(ctx, id)
}

// Dashboard loads the catalog summary. The parts are fetched concurrently and
// the first failure fails the whole summary.
func (s *Catalog) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		d      Dashboard
		total  domain.ProductPage
		recent domain.ProductPage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := querycache.Fetch(gctx, s.cache, totalKey, s.listStale, func(ctx context.Context) (domain.ProductPage, error) {
			return s.listPage(ctx, domain.ProductsQuery{Page: 1, Limit: 1})
		})
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		total = page
		return nil
	})
	g.Go(func() error {
		active := true
		page, err := querycache.Fetch(gctx, s.cache, recentKey, s.listStale, func(ctx context.Context) (domain.ProductPage, error) {
			return s.listPage(ctx, domain.ProductsQuery{
				Page:   1,
				Limit:  RecentActiveLimit,
				Active: &active,
				Sort:   domain.SortByRegisteredAt,
				Order:  domain.OrderDesc,
			})
		})
		if err != nil {
			return fmt.Errorf("list recent active products: %w", err)
		}
		recent = page
		return nil
	})
	g.Go(func() error {
		companies, err := s.Companies(gctx)
		if err != nil {
			return err
		}
		d.Companies = len(companies)
		return nil
	})
	g.Go(func() error {
		users, err := s.Users(gctx)
		if err != nil {
			return err
		}
		d.Users = len(users)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.TotalProducts = total.Pagination.TotalItems
	d.ActiveProducts = recent.Pagination.TotalItems
	d.InactiveProducts = max(d.TotalProducts-d.ActiveProducts, 0)
	d.RecentActive = recent.Data
	if d.RecentActive == nil {
		d.RecentActive = []domain.Product{}
	}
	return &d, nil
}

func (s *Catalog) listPage(ctx context.Context, q domain.ProductsQuery) (domain.ProductPage, error) {
	page, err := s.api.ListProducts(ctx, q)
	if err != nil {
		return domain.ProductPage{}, err
	}
	return *page, nil
}

// IsCreateError reports whether err is a failed creation.
func IsCreateError(err error) bool {
	var ce *CreateError
	return errors.As(err, &ce)
}
