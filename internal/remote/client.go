// Package remote is the REST client for the deposit product API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ivankomartin/deposit-console/internal/domain"
	apperrors "github.com/ivankomartin/deposit-console/pkg/errors"
	"github.com/ivankomartin/deposit-console/pkg/httpclient"
	"github.com/ivankomartin/deposit-console/pkg/logger"
	"github.com/ivankomartin/deposit-console/pkg/middleware"
)

// ServiceName labels product API failures in errors and logs.
const ServiceName = "product-api"

// Client calls the product API. All methods are safe for concurrent use.
type Client struct {
	http    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a product API client. doer is usually a
// Breaker so list scans and lookups share one breaker.
func NewClient(doer httpclient.Doer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type companiesResponse struct {
	Data  []domain.Company `json:"data"`
	Total int              `json:"total"`
}

type usersResponse struct {
	Success bool          `json:"success"`
	Data    []domain.User `json:"data"`
	Total   int           `json:"total"`
	Error   string        `json:"error"`
}

type createResponse struct {
	Success bool           `json:"success"`
	Data    domain.Product `json:"data"`
	Message string         `json:"message"`
	Error   string         `json:"error"`
}

// ListProducts fetches one page of products. Status, sort and order are
// applied by the server.
func (c *Client) ListProducts(ctx context.Context, q domain.ProductsQuery) (*domain.ProductPage, error) {
	var page domain.ProductPage
	if err := c.get(ctx, "/api/products", productsParams(q), &page); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if page.Data == nil {
		page.Data = []domain.Product{}
	}
	return &page, nil
}

// ListCompanies fetches every registered company.
func (c *Client) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	var resp companiesResponse
	if err := c.get(ctx, "/api/companies", nil, &resp); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	if resp.Data == nil {
		resp.Data = []domain.Company{}
	}
	return resp.Data, nil
}

// ListUsers fetches every user. A {"success":false} payload is returned as an
// upstream error even though the status is 200.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var resp usersResponse
	if err := c.get(ctx, "/api/users", nil, &resp); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "users request was not successful"
		}
		return nil, fmt.Errorf("list users: %w", apperrors.Upstream(ServiceName+": "+msg))
	}
	if resp.Data == nil {
		resp.Data = []domain.User{}
	}
	return resp.Data, nil
}

// CreateProduct registers a new product. The API always creates it inactive.
func (c *Client) CreateProduct(ctx context.Context, in domain.NewProduct) (*domain.Product, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/products", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create product request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp createResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = resp.Error
		}
		if msg == "" {
			msg = "product was not created"
		}
		return nil, fmt.Errorf("create product: %w", apperrors.InvalidInput(ServiceName+": "+msg))
	}

	c.logger.InfoContext(ctx, "product created upstream",
		slog.Int64("product_id", resp.Data.ID),
		slog.String("message", resp.Message),
	)
	return &resp.Data, nil
}

// Ping issues the cheapest listing request to check the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListProducts(ctx, domain.ProductsQuery{Page: 1, Limit: 1})
	return err
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create GET request: %w", err)
	}
	return c.do(ctx, req, dst)
}

// do sends req and decodes a 2xx JSON body into dst. Cancellation is passed
// through unchanged so callers can discard it silently.
func (c *Client) do(ctx context.Context, req *http.Request, dst any) error {
	req.Header.Set("Accept", "application/json")
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return httpclient.TranslateError(err, ServiceName)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, ServiceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Upstream(fmt.Sprintf("%s: decode response: %v", ServiceName, err))
	}
	return nil
}

// productsParams omits zero-valued fields so the API applies its defaults.
func productsParams(q domain.ProductsQuery) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Active != nil {
		v.Set("active", strconv.FormatBool(*q.Active))
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	if q.Order != "" {
		v.Set("order", string(q.Order))
	}
	return v
}
