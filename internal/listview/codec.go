package listview

import (
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/ivankomartin/deposit-console/internal/domain"
)

// Query-string parameters owned by the product list.
const (
	ParamStatus    = "status"
	ParamPage      = "page"
	ParamLimit     = "limit"
	ParamSort      = "sort"
	ParamOrder     = "order"
	ParamQ         = "q"
	ParamCompanyID = "companyId"
)

// DefaultLimit is the page size used when the URL carries none or an
// unsupported one.
const DefaultLimit = 25

// PageSizes returns the page sizes the list offers.
func PageSizes() []int {
	return []int{10, 25, 50, 100}
}

// Query is the filter, sort and page state of the product list.
type Query struct {
	Page      int              `json:"page"`
	Limit     int              `json:"limit"`
	Status    domain.Status    `json:"status"`
	Sort      domain.SortField `json:"sort"`
	Order     domain.SortOrder `json:"order"`
	NameQuery string           `json:"nameQuery"`
	CompanyID string           `json:"companyId"`
}

// DefaultQuery is the state of a bare /products URL.
func DefaultQuery() Query {
	return Query{
		Page:   1,
		Limit:  DefaultLimit,
		Status: domain.StatusAll,
		Sort:   domain.SortByRegisteredAt,
		Order:  domain.OrderDesc,
	}
}

// Decode reads the list state from a query string. Missing, malformed and
// out-of-range values fall back to their defaults.
func Decode(v url.Values) Query {
	q := Query{
		Page:      1,
		Limit:     DefaultLimit,
		Status:    domain.Status(v.Get(ParamStatus)),
		Sort:      domain.SortField(v.Get(ParamSort)),
		Order:     domain.SortOrder(v.Get(ParamOrder)),
		NameQuery: v.Get(ParamQ),
		CompanyID: v.Get(ParamCompanyID),
	}
	if n, err := strconv.Atoi(v.Get(ParamPage)); err == nil {
		q.Page = n
	}
	if n, err := strconv.Atoi(v.Get(ParamLimit)); err == nil {
		q.Limit = n
	}
	return q.Normalize()
}

// Normalize replaces every invalid field with its default.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if !slices.Contains(PageSizes(), q.Limit) {
		q.Limit = DefaultLimit
	}
	if q.Status != domain.StatusActive && q.Status != domain.StatusInactive {
		q.Status = domain.StatusAll
	}
	if !domain.IsValidSortField(q.Sort) {
		q.Sort = domain.SortByRegisteredAt
	}
	if !domain.IsValidSortOrder(q.Order) {
		q.Order = domain.OrderDesc
	}
	return q
}

// Encode writes the list state as a query string. Status, page, limit, sort
// and order are always present; q and companyId only when non-empty.
func Encode(q Query) url.Values {
	return Apply(url.Values{}, q)
}

// Apply writes q over a copy of base, keeping parameters the list does not
// own.
func Apply(base url.Values, q Query) url.Values {
	next := make(url.Values, len(base)+7)
	for k, vs := range base {
		next[k] = slices.Clone(vs)
	}
	next.Set(ParamStatus, string(q.Status))
	next.Set(ParamPage, strconv.Itoa(q.Page))
	next.Set(ParamLimit, strconv.Itoa(q.Limit))
	next.Set(ParamSort, string(q.Sort))
	next.Set(ParamOrder, string(q.Order))
	setOrDelete(next, ParamQ, q.NameQuery)
	setOrDelete(next, ParamCompanyID, q.CompanyID)
	return next
}

func setOrDelete(v url.Values, key, value string) {
	if value == "" {
		v.Del(key)
		return
	}
	v.Set(key, value)
}

// String is the canonical encoded form of q.
func (q Query) String() string {
	return Encode(q).Encode()
}

// Searching reports whether q needs the aggregating search instead of server
// pagination.
func (q Query) Searching() bool {
	return q.NameQuery != "" || q.CompanyID != ""
}

// ServerQuery is the product API request for the page q shows in server mode.
func (q Query) ServerQuery() domain.ProductsQuery {
	return domain.ProductsQuery{
		Page:   q.Page,
		Limit:  q.Limit,
		Active: q.Status.Active(),
		Sort:   q.Sort,
		Order:  q.Order,
	}
}

// serverKey identifies the server page for q; text filters do not take part.
func (q Query) serverKey() string {
	q.NameQuery, q.CompanyID = "", ""
	return q.String()
}

// Location is where the list publishes its state, e.g. the address bar of a
// browser session. Replace overwrites the current entry and never adds one
// to history.
type Location interface {
	Query() url.Values
	Replace(rawQuery string)
}

// MemoryLocation is an in-process Location that records history depth so
// callers can verify writes never push entries.
type MemoryLocation struct {
	mu       sync.Mutex
	raw      string
	history  int
	replaced int
}

// NewMemoryLocation starts at rawQuery with a single history entry.
func NewMemoryLocation(rawQuery string) *MemoryLocation {
	return &MemoryLocation{raw: rawQuery, history: 1}
}

// Query parses the current query string. Unparsable input yields whatever
// pairs could be read.
func (l *MemoryLocation) Query() url.Values {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, _ := url.ParseQuery(l.raw)
	return v
}

// Replace overwrites the current entry.
func (l *MemoryLocation) Replace(rawQuery string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raw = rawQuery
	l.replaced++
}

// Push navigates to a new entry, as following a link would.
func (l *MemoryLocation) Push(rawQuery string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raw = rawQuery
	l.history++
}

// RawQuery returns the current query string.
func (l *MemoryLocation) RawQuery() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.raw
}

// HistoryLen returns the number of history entries.
func (l *MemoryLocation) HistoryLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history
}

// Replacements returns how many times Replace was called.
func (l *MemoryLocation) Replacements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaced
}
