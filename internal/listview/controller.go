// Package listview drives the product list: it decodes the list state from a
// query string, chooses between server pagination and aggregated search, and
// publishes one view of what the table shows.
package listview

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/querycache"
	"github.com/ivankomartin/deposit-console/pkg/debounce"
	"github.com/ivankomartin/deposit-console/pkg/pagination"
)

// ErrClosed is returned by WaitIdle once the controller has been closed.
var ErrClosed = errors.New("list controller closed")

// DefaultStaleTime is how long a server page is served from cache.
const DefaultStaleTime = 60 * time.Second

// Mode names where the rows on screen come from.
type Mode string

// List modes.
const (
	ModeServer Mode = "server"
	ModeSearch Mode = "search"
)

// mode is either *serverMode or *searchMode; exactly one is active.
type mode interface {
	kind() Mode
}

// serverMode shows one page of the product API as is.
type serverMode struct {
	key         string
	page        *domain.ProductPage
	placeholder bool
	loading     bool
	err         error
	token       uint64
	cancel      context.CancelFunc
}

func (*serverMode) kind() Mode { return ModeServer }

func (m *serverMode) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.token = 0
	m.loading = false
}

// searchMode shows a virtual page cut out of an aggregation run.
type searchMode struct {
	req     SearchRequest
	started bool
	result  *SearchResult
	running bool
	err     error
	token   uint64
	cancel  context.CancelFunc
}

func (*searchMode) kind() Mode { return ModeSearch }

func (m *searchMode) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.token = 0
	m.running = false
}

// View is what the product table renders.
type View struct {
	Rows        []domain.Product `json:"rows"`
	TotalItems  int              `json:"totalItems"`
	TotalPages  int              `json:"totalPages"`
	IsLoading   bool             `json:"isLoading"`
	IsError     bool             `json:"isError"`
	Error       string           `json:"error,omitempty"`
	Err         error            `json:"-"`
	Mode        Mode             `json:"mode"`
	Page        int              `json:"page"`
	Limit       int              `json:"limit"`
	Status      domain.Status    `json:"status"`
	Sort        domain.SortField `json:"sort"`
	Order       domain.SortOrder `json:"order"`
	NameQuery   string           `json:"nameQuery"`
	CompanyID   string           `json:"companyId"`
	Placeholder bool             `json:"placeholder"`
	Approximate bool             `json:"approximate"`
	Query       string           `json:"query"`
}

// Options configures a Controller. Source is required.
type Options struct {
	Source    ProductSource
	Cache     *querycache.Cache
	StaleTime time.Duration
	Budget    SearchBudget
	Debounce  time.Duration
	Location  Location
	Logger    *slog.Logger
}

type snapshot struct {
	view View
	idle bool
}

// Controller owns the list state. Every transition runs on one goroutine;
// setters hand their change to it and I/O completions come back to it tagged
// with a run token, so a superseded request can never overwrite newer state.
type Controller struct {
	source    ProductSource
	cache     *querycache.Cache
	staleTime time.Duration
	search    *Aggregator
	location  Location
	logger    *slog.Logger

	nameInput    *debounce.Debouncer[string]
	companyInput *debounce.Debouncer[string]

	ctx         context.Context
	cancelAll   context.CancelFunc
	events      chan func()
	quit        chan struct{}
	done        chan struct{}
	invalidated <-chan struct{}
	unsubscribe func()
	closeOnce   sync.Once

	// Loop-owned.
	query            Query
	mode             mode
	debouncedName    string
	debouncedCompany string
	tokens           uint64
	lastServer       *domain.ProductPage

	state atomic.Pointer[snapshot]
	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// NewController starts a controller whose initial state is decoded from
// opts.Location. The canonical form of that state is written back to the
// location immediately. Close must be called to release it.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = querycache.NewMemory(opts.Logger)
	}
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}

	query := DefaultQuery()
	if opts.Location != nil {
		query = Decode(opts.Location.Query())
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:    opts.Source,
		cache:     opts.Cache,
		staleTime: opts.StaleTime,
		search:    NewAggregator(opts.Source, opts.Budget, opts.Logger),
		location:  opts.Location,
		logger:    opts.Logger,
		ctx:       ctx,
		cancelAll: cancel,
		events:    make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		// A freshly loaded URL has nothing to wait for.
		debouncedName:    query.NameQuery,
		debouncedCompany: query.CompanyID,
		subs:             make(map[chan struct{}]struct{}),
	}
	c.nameInput = debounce.New(opts.Debounce, func(v string) {
		c.post(func() { c.onNameSettled(v) })
	})
	c.companyInput = debounce.New(opts.Debounce, func(v string) {
		c.post(func() { c.onCompanySettled(v) })
	})
	c.invalidated, c.unsubscribe = c.cache.Subscribe(RootProducts)

	go c.loop()
	c.do(func() {
		c.query = query
		c.reconcile(Query{})
		c.writeLocation()
	})
	return c
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.invalidated:
			c.onInvalidated()
			c.publish()
		case <-c.quit:
			c.shutdown()
			c.publish()
			return
		}
	}
}

// do runs fn on the loop and waits for it. It reports false once closed.
func (c *Controller) do(fn func()) bool {
	applied := make(chan struct{})
	select {
	case c.events <- func() { fn(); c.publish(); close(applied) }:
		<-applied
		return true
	case <-c.quit:
		return false
	}
}

// post hands fn to the loop without waiting for it to run. Completions posted
// after Close are dropped.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- func() { fn(); c.publish() }:
	case <-c.quit:
	}
}

// View returns the current view.
func (c *Controller) View() View {
	return c.state.Load().view
}

// Query returns the current list state.
func (c *Controller) Query() Query {
	v := c.View()
	return Query{
		Page:      v.Page,
		Limit:     v.Limit,
		Status:    v.Status,
		Sort:      v.Sort,
		Order:     v.Order,
		NameQuery: v.NameQuery,
		CompanyID: v.CompanyID,
	}
}

// Subscribe returns a channel signalled after every view change. Signals
// coalesce when the receiver is slow. The returned function unsubscribes.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, ch)
			c.subMu.Unlock()
		})
	}
}

// WaitIdle blocks until no request or run is in flight and the search inputs
// have settled.
func (c *Controller) WaitIdle(ctx context.Context) error {
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()
	for {
		if c.state.Load().idle {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			if c.state.Load().idle {
				return nil
			}
			return ErrClosed
		}
	}
}

// Close cancels in-flight work and stops the controller. Safe to call more
// than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done
	})
}

// SetPage moves to page n of the current list.
func (c *Controller) SetPage(n int) {
	c.do(func() {
		next := c.query
		next.Page = n
		c.commit(next)
	})
}

// SetLimit changes the page size.
func (c *Controller) SetLimit(n int) {
	c.update(func(q *Query) { q.Limit = n })
}

// SetStatus changes the status filter.
func (c *Controller) SetStatus(s domain.Status) {
	c.update(func(q *Query) { q.Status = s })
}

// SetNameQuery changes the free-text name filter.
func (c *Controller) SetNameQuery(s string) {
	c.update(func(q *Query) { q.NameQuery = s })
}

// SetCompanyID changes the company filter.
func (c *Controller) SetCompanyID(s string) {
	c.update(func(q *Query) { q.CompanyID = s })
}

// ToggleSort flips the order when field is already the sort field, otherwise
// sorts by field in its natural order. Unknown fields are ignored.
func (c *Controller) ToggleSort(field domain.SortField) {
	if !domain.IsValidSortField(field) {
		return
	}
	c.update(func(q *Query) {
		if q.Sort == field {
			q.Order = q.Order.Flip()
			return
		}
		q.Sort = field
		q.Order = field.DefaultOrder()
	})
}

// SetQuery replaces the whole state, as navigating to a list URL does. The
// page is taken as given.
func (c *Controller) SetQuery(q Query) {
	c.do(func() { c.commit(q) })
}

// Navigate moves to q the way the setters would: when anything but the page
// differs from the current state, the page goes back to 1.
func (c *Controller) Navigate(q Query) {
	c.do(func() {
		next := q.Normalize()
		cur := c.query
		cur.Page = next.Page
		if next != cur {
			next.Page = 1
		}
		c.commit(next)
	})
}

// Sync re-reads the location, e.g. after back or forward navigation.
func (c *Controller) Sync() {
	if c.location == nil {
		return
	}
	c.SetQuery(Decode(c.location.Query()))
}

// FlushInput applies pending search input without waiting for the debounce
// delay. It must not be called from a subscriber running on the loop.
func (c *Controller) FlushInput() {
	c.nameInput.Flush()
	c.companyInput.Flush()
}

// Refresh reloads the current rows: the server page through the cache, or
// a new aggregation run.
func (c *Controller) Refresh() {
	c.do(func() {
		switch m := c.mode.(type) {
		case *serverMode:
			c.fetchServer(m)
		case *searchMode:
			m.stop()
			m.started = false
			c.maybeSearch()
		}
	})
}

// update applies a change to any field but the page. A real change sends the
// list back to page 1.
func (c *Controller) update(change func(*Query)) {
	c.do(func() {
		next := c.query
		change(&next)
		if next.Normalize() != c.query {
			next.Page = 1
		}
		c.commit(next)
	})
}

func (c *Controller) commit(next Query) {
	next = next.Normalize()
	if next == c.query {
		return
	}
	prev := c.query
	c.query = next
	if next.NameQuery != prev.NameQuery {
		c.nameInput.Push(next.NameQuery)
	}
	if next.CompanyID != prev.CompanyID {
		c.companyInput.Push(next.CompanyID)
	}
	c.writeLocation()
	c.reconcile(prev)
}

func (c *Controller) writeLocation() {
	if c.location == nil {
		return
	}
	c.location.Replace(Apply(c.location.Query(), c.query).Encode())
}

// reconcile moves to the mode the current query needs and starts whatever
// I/O that mode is missing.
func (c *Controller) reconcile(prev Query) {
	if !c.query.Searching() {
		c.enterServer()
		return
	}

	sm, ok := c.mode.(*searchMode)
	switch {
	case !ok:
		if m, isServer := c.mode.(*serverMode); isServer {
			m.stop()
		}
		sm = &searchMode{}
		c.mode = sm
	case c.query.NameQuery != prev.NameQuery || c.query.CompanyID != prev.CompanyID:
		// Rows for other filter text must not linger while the new text settles.
		sm.stop()
		sm.started, sm.result, sm.err = false, nil, nil
	}
	c.maybeSearch()
}

func (c *Controller) enterServer() {
	sm, ok := c.mode.(*serverMode)
	if !ok {
		if m, isSearch := c.mode.(*searchMode); isSearch {
			m.stop()
		}
		sm = &serverMode{page: c.lastServer, placeholder: c.lastServer != nil}
		c.mode = sm
	}
	if sm.key == c.query.serverKey() {
		return
	}
	c.fetchServer(sm)
}

// fetchServer loads the server page for the current query through the
// cache. A cached copy is shown right away; otherwise the previous rows stay
// on screen as placeholder data.
func (c *Controller) fetchServer(sm *serverMode) {
	sm.stop()
	c.tokens++
	token := c.tokens
	key := ListKey(c.query)
	sq := c.query.ServerQuery()

	sm.key = c.query.serverKey()
	sm.token = token
	sm.loading = true
	sm.err = nil
	if cached, ok := querycache.Peek(c.ctx, c.cache, key); ok {
		sm.page, sm.placeholder = &cached, false
	} else if sm.page != nil {
		sm.placeholder = true
	}

	ctx, cancel := context.WithCancel(c.ctx)
	sm.cancel = cancel
	go func() {
		page, err := querycache.Fetch(ctx, c.cache, key, c.staleTime, func(ctx context.Context) (domain.ProductPage, error) {
			p, err := c.source.ListProducts(ctx, sq)
			if err != nil {
				return domain.ProductPage{}, err
			}
			return *p, nil
		})
		c.post(func() { c.onServerLoaded(token, page, err) })
	}()
}

func (c *Controller) onServerLoaded(token uint64, page domain.ProductPage, err error) {
	sm, ok := c.mode.(*serverMode)
	if !ok || sm.token != token {
		return
	}
	sm.stop()
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		serverFetches.WithLabelValues("error").Inc()
		c.logger.WarnContext(c.ctx, "product list load failed",
			slog.String("query", sm.key),
			slog.String("error", err.Error()),
		)
		sm.err = err
		sm.page, sm.placeholder = nil, false
		return
	}
	serverFetches.WithLabelValues("ok").Inc()
	sm.page, sm.placeholder = &page, false
	c.lastServer = &page
}

func (c *Controller) onInvalidated() {
	if sm, ok := c.mode.(*serverMode); ok {
		c.fetchServer(sm)
	}
}

func (c *Controller) onNameSettled(v string) {
	c.debouncedName = v
	c.maybeSearch()
}

func (c *Controller) onCompanySettled(v string) {
	c.debouncedCompany = v
	c.maybeSearch()
}

// maybeSearch starts an aggregation run once the debounced filters have
// caught up with the input, cancelling any run for older inputs.
func (c *Controller) maybeSearch() {
	sm, ok := c.mode.(*searchMode)
	if !ok || c.settling() {
		return
	}
	req := searchRequest(c.query, c.debouncedName, c.debouncedCompany)
	if sm.started && sm.req == req {
		return
	}

	sm.stop()
	c.tokens++
	token := c.tokens
	ctx, cancel := context.WithCancel(c.ctx)
	sm.req, sm.started, sm.token, sm.cancel = req, true, token, cancel
	sm.running, sm.err = true, nil

	go func() {
		res, err := c.search.Search(ctx, req)
		c.post(func() { c.onSearchDone(token, res, err) })
	}()
}

func (c *Controller) onSearchDone(token uint64, res *SearchResult, err error) {
	sm, ok := c.mode.(*searchMode)
	if !ok || sm.token != token {
		return
	}
	sm.stop()
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		c.logger.WarnContext(c.ctx, "product search failed",
			slog.String("name_query", sm.req.NameQuery),
			slog.String("company_id", sm.req.CompanyID),
			slog.String("error", err.Error()),
		)
		sm.err, sm.result = err, nil
		return
	}
	sm.result = res
}

// settling reports whether the debounced filters lag behind the input.
func (c *Controller) settling() bool {
	return c.debouncedName != c.query.NameQuery || c.debouncedCompany != c.query.CompanyID
}

func (c *Controller) shutdown() {
	c.nameInput.Stop()
	c.companyInput.Stop()
	switch m := c.mode.(type) {
	case *serverMode:
		m.stop()
	case *searchMode:
		m.stop()
	}
	c.cancelAll()
	c.unsubscribe()
}

func (c *Controller) publish() {
	view, idle := c.buildView()
	c.state.Store(&snapshot{view: view, idle: idle})

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) buildView() (View, bool) {
	q := c.query
	v := View{
		Rows:       []domain.Product{},
		TotalPages: 1,
		Page:       q.Page,
		Limit:      q.Limit,
		Status:     q.Status,
		Sort:       q.Sort,
		Order:      q.Order,
		NameQuery:  q.NameQuery,
		CompanyID:  q.CompanyID,
		Query:      q.String(),
	}
	settling := c.settling()
	idle := !settling && !c.nameInput.Pending() && !c.companyInput.Pending()

	switch m := c.mode.(type) {
	case *serverMode:
		v.Mode = ModeServer
		if m.page != nil {
			v.Rows = slices.Clone(m.page.Data)
			v.TotalItems = m.page.Pagination.TotalItems
			v.TotalPages = m.page.Pagination.TotalPages
			if m.placeholder || v.TotalPages < 1 {
				// placeholder rows may come from another limit
				v.TotalPages = pagination.TotalPages(v.TotalItems, q.Limit)
			}
		}
		v.Placeholder = m.placeholder
		v.IsLoading = m.loading
		v.Err = m.err
		idle = idle && !m.loading
	case *searchMode:
		v.Mode = ModeSearch
		if m.result != nil {
			v.Rows = slices.Clone(m.result.Rows)
			v.TotalItems = m.result.TotalItems
			v.TotalPages = m.result.TotalPages
			v.Approximate = !m.result.Exhausted
		}
		v.IsLoading = m.running || (m.result == nil && m.err == nil) || settling
		v.Err = m.err
		idle = idle && !m.running
	}
	if v.Err != nil {
		v.IsError = true
		v.Error = v.Err.Error()
	}
	return v, idle
}
