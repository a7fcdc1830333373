// Package remotetest serves an in-memory product API for tests.
package remotetest

import (
	"cmp"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/pkg/pagination"
)

// Server is a fake product API backed by slices. It records every product
// listing query it receives.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	products  []domain.Product
	companies []domain.Company
	users     []domain.User
	usersErr  string
	failNext  int
	delay     time.Duration
	queries   []url.Values
	nextID    int64
}

// NewServer starts a fake API serving products. Call Close when done.
func NewServer(products []domain.Product) *Server {
	s := &Server{products: slices.Clone(products)}
	for _, p := range products {
		s.nextID = max(s.nextID, p.ID)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", s.listProducts)
	mux.HandleFunc("POST /api/products", s.createProduct)
	mux.HandleFunc("GET /api/companies", s.listCompanies)
	mux.HandleFunc("GET /api/users", s.listUsers)
	s.Server = httptest.NewServer(mux)
	return s
}

// SetCompanies replaces the company list.
func (s *Server) SetCompanies(companies []domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = companies
}

// SetUsers replaces the user list.
func (s *Server) SetUsers(users []domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}

// FailUsers makes /api/users answer {"success":false,"error":msg}.
func (s *Server) FailUsers(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersErr = msg
}

// FailNext makes the next n product listings answer 500.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetDelay holds every product listing for d before answering.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Queries returns the product listing queries received so far.
func (s *Server) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queries)
}

// ResetQueries forgets the recorded queries.
func (s *Server) ResetQueries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = nil
}

// Products returns a copy of the stored products.
func (s *Server) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.products)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	s.queries = append(s.queries, q)
	delay := s.delay
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	rows := slices.Clone(s.products)
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "database unavailable"})
		return
	}

	if active := q.Get("active"); active != "" {
		want := active == "true"
		rows = slices.DeleteFunc(rows, func(p domain.Product) bool { return p.Active != want })
	}
	sortProducts(rows, domain.SortField(q.Get("sort")), domain.SortOrder(q.Get("order")))

	params := pagination.Params{Page: atoiDefault(q.Get("page"), 1), Limit: atoiDefault(q.Get("limit"), 10)}
	writeJSON(w, http.StatusOK, domain.ProductPage{
		Data:       pagination.Slice(rows, params),
		Pagination: pagination.NewInfo(len(rows), params),
	})
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var in domain.NewProduct
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid body"})
		return
	}
	if strings.EqualFold(in.Name, "duplicate") {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "product already exists"})
		return
	}

	s.mu.Lock()
	s.nextID++
	p := domain.Product{
		ID:             s.nextID,
		CompanyID:      in.CompanyID,
		RegisteredByID: in.RegisteredByID,
		Name:           in.Name,
		Packaging:      in.Packaging,
		Deposit:        in.Deposit,
		Volume:         in.Volume,
		RegisteredAt:   time.Now().UTC().Format(time.RFC3339),
		Active:         false,
	}
	s.products = append(s.products, p)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": p, "message": "Product created"})
}

func (s *Server) listCompanies(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	companies := slices.Clone(s.companies)
	s.mu.Unlock()
	if companies == nil {
		companies = []domain.Company{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": companies, "total": len(companies)})
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	users, usersErr := slices.Clone(s.users), s.usersErr
	s.mu.Unlock()
	if usersErr != "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": usersErr})
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": users, "total": len(users)})
}

func sortProducts(rows []domain.Product, field domain.SortField, order domain.SortOrder) {
	slices.SortStableFunc(rows, func(a, b domain.Product) int {
		var c int
		if field == domain.SortByName {
			c = cmp.Compare(a.Name, b.Name)
		} else {
			c = cmp.Compare(a.RegisteredAt, b.RegisteredAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if order == domain.OrderDesc {
			return -c
		}
		return c
	})
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Catalog builds n products with ids 1..n named "Product <id>", alternating
// active flags and company ids 1..companies. Registration times increase with id.
func Catalog(n, companies int) []domain.Product {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Product, n)
	for i := range out {
		id := int64(i + 1)
		out[i] = domain.Product{
			ID:             id,
			CompanyID:      int64(i%max(companies, 1)) + 1,
			RegisteredByID: 1,
			Name:           "Product " + strconv.FormatInt(id, 10),
			Packaging:      domain.ValidPackagings()[i%len(domain.ValidPackagings())],
			Deposit:        25,
			Volume:         500,
			RegisteredAt:   base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Active:         i%2 == 0,
		}
	}
	return out
}
