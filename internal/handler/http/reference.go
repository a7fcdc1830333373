package http

import (
	"log/slog"
	"net/http"

	"github.com/ivankomartin/deposit-console/internal/service"
	"github.com/ivankomartin/deposit-console/pkg/httputil"
)

// ReferenceHandler serves companies, users, and the dashboard summary.
type ReferenceHandler struct {
	catalog *service.Catalog
	logger  *slog.Logger
}

// NewReferenceHandler creates a reference data handler.
func NewReferenceHandler(catalog *service.Catalog, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{catalog: catalog, logger: logger}
}

// ListCompanies handles GET /console/companies.
func (h *ReferenceHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.catalog.Companies(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, companies)
}

// ListUsers handles GET /console/users.
func (h *ReferenceHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.catalog.Users(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, users)
}

// Dashboard handles GET /console/dashboard.
func (h *ReferenceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.catalog.Dashboard(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, d)
}
