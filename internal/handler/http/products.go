package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/listview"
	"github.com/ivankomartin/deposit-console/internal/service"
	"github.com/ivankomartin/deposit-console/pkg/httputil"
	"github.com/ivankomartin/deposit-console/pkg/middleware"
	"github.com/ivankomartin/deposit-console/pkg/validator"
)

// DefaultListWait bounds how long a list request waits for its view to
// settle.
const DefaultListWait = 30 * time.Second

// ProductHandler handles the product list, detail, and creation endpoints.
type ProductHandler struct {
	catalog       *service.Catalog
	sessions      *listview.Registry
	newController func(listview.Location) *listview.Controller
	wait          time.Duration
	logger        *slog.Logger
}

// NewProductHandler creates a product handler. Requests carrying an
// X-Session-ID header share the session's controller from sessions; others
// get a throwaway controller built by newController.
func NewProductHandler(
	catalog *service.Catalog,
	sessions *listview.Registry,
	newController func(listview.Location) *listview.Controller,
	logger *slog.Logger,
) *ProductHandler {
	return &ProductHandler{
		catalog:       catalog,
		sessions:      sessions,
		newController: newController,
		wait:          DefaultListWait,
		logger:        logger,
	}
}

// ListProducts handles GET /console/products. The query string is the list
// state as it appears in the console URL; the response is the settled view.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.wait)
	defer cancel()

	var ctrl *listview.Controller
	if sid := r.Header.Get(middleware.HeaderSessionID); sid != "" && h.sessions != nil {
		// Keystrokes from one session debounce and supersede each other.
		ctrl = h.sessions.Get(sid, r.URL.RawQuery)
	} else {
		ctrl = h.newController(listview.NewMemoryLocation(r.URL.RawQuery))
		defer ctrl.Close()
		ctrl.FlushInput()
	}

	if err := ctrl.WaitIdle(ctx); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, ctrl.View())
}

// GetProduct handles GET /console/products/{id}.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	detail, err := h.catalog.ProductDetail(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, detail)
}

// CreateProduct handles POST /console/products.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.NewProduct
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.catalog.CreateProduct(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}
