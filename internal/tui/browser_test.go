package tui

import (
	"strconv"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/listview"
)

// fakeBrowser records setter calls and serves a fixed view.
type fakeBrowser struct {
	mu    sync.Mutex
	view  listview.View
	calls []string
	ch    chan struct{}
}

func newFakeBrowser(v listview.View) *fakeBrowser {
	return &fakeBrowser{view: v, ch: make(chan struct{}, 1)}
}

func (f *fakeBrowser) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBrowser) View() listview.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeBrowser) setView(v listview.View) {
	f.mu.Lock()
	f.view = v
	f.mu.Unlock()
}

func (f *fakeBrowser) Subscribe() (<-chan struct{}, func()) { return f.ch, func() {} }
func (f *fakeBrowser) SetPage(n int) { f.record("page=" + strconv.Itoa(n)) }
func (f *fakeBrowser) SetLimit(n int) { f.record("limit=" + strconv.Itoa(n)) }
func (f *fakeBrowser) SetStatus(s domain.Status) { f.record("status=" + string(s)) }
func (f *fakeBrowser) SetNameQuery(s string) { f.record("q=" + s) }
func (f *fakeBrowser) SetCompanyID(s string) { f.record("companyId=" + s) }
func (f *fakeBrowser) ToggleSort(field domain.SortField) { f.record("sort=" + string(field)) }
func (f *fakeBrowser) Refresh() { f.record("refresh") }

func baseView() listview.View {
	return listview.View{
		Rows: []domain.Product{
			{ID: 1, Name: "Kofola 0.5", Packaging: domain.PackagingPET, Deposit: 25, Volume: 500, CompanyID: 2, Active: true},
			{ID: 2, Name: "Rajec 1.5", Packaging: domain.PackagingPET, Deposit: 25, Volume: 1500, CompanyID: 3},
		},
		TotalItems: 60,
		TotalPages: 3,
		Mode:       listview.ModeServer,
		Page:       1,
		Limit:      25,
		Status:     domain.StatusAll,
		Sort:       domain.SortByRegisteredAt,
		Order:      domain.OrderDesc,
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

// =============================================================================
// Rendering
// =============================================================================

func TestModel_RendersRows(t *testing.T) {
	m := New(newFakeBrowser(baseView()))

	out := m.View()
	assert.Contains(t, out, "Kofola 0.5")
	assert.Contains(t, out, "Rajec 1.5")
	assert.Contains(t, out, "page 1/3")
	assert.Contains(t, out, "60 items")
	assert.Contains(t, out, "server mode")
}

func TestModel_RendersStates(t *testing.T) {
	v := baseView()
	v.Rows = nil
	v.IsError = true
	v.Error = "product API request failed"
	assert.Contains(t, New(newFakeBrowser(v)).View(), "Failed to load products: product API request failed")

	v = baseView()
	v.IsLoading = true
	assert.Contains(t, New(newFakeBrowser(v)).View(), "Loading…")

	v = baseView()
	v.Rows = nil
	assert.Contains(t, New(newFakeBrowser(v)).View(), "No products found.")

	v = baseView()
	v.Mode = listview.ModeSearch
	v.Approximate = true
	assert.Contains(t, New(newFakeBrowser(v)).View(), "≥60 items")
}

func TestModel_ViewChangedPullsNewView(t *testing.T) {
	b := newFakeBrowser(baseView())
	m := New(b)

	v := baseView()
	v.Rows = []domain.Product{{ID: 9, Name: "Vinea"}}
	b.setView(v)

	next, cmd := m.Update(viewChangedMsg{})
	assert.NotNil(t, cmd, "keeps listening for changes")
	out := next.(Model).View()
	assert.Contains(t, out, "Vinea")
	assert.NotContains(t, out, "Kofola")
}

func TestModel_InitWaitsForSubscription(t *testing.T) {
	b := newFakeBrowser(baseView())
	m := New(b)

	cmd := m.Init()
	require.NotNil(t, cmd)
	b.ch <- struct{}{}
	assert.Equal(t, viewChangedMsg{}, cmd())
}

// =============================================================================
// Keys
// =============================================================================

func TestModel_TableKeys(t *testing.T) {
	b := newFakeBrowser(baseView())
	m := New(b)

	press(t, m,
		runes("n"),
		runes("s"),
		runes("l"),
		runes("a"),
		runes("d"),
		tea.KeyMsg{Type: tea.KeyCtrlR},
	)

	assert.Equal(t, []string{
		"page=2",
		"status=active",
		"limit=50",
		"sort=name",
		"sort=registeredAt",
		"refresh",
	}, b.calls)
}

func TestModel_PagingStopsAtBounds(t *testing.T) {
	v := baseView()
	v.Page, v.TotalPages = 1, 1
	b := newFakeBrowser(v)

	press(t, New(b), runes("n"), runes("p"))
	assert.Empty(t, b.calls)
}

func TestModel_TypingSendsEveryKeystroke(t *testing.T) {
	b := newFakeBrowser(baseView())
	m := press(t, New(b), runes("/"), runes("c"), runes("o"), runes("l"))

	assert.Equal(t, []string{"q=c", "q=co", "q=col"}, b.calls)
	assert.Equal(t, focusName, m.focus)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, focusTable, m.focus)
}

func TestModel_CompanyInput(t *testing.T) {
	b := newFakeBrowser(baseView())
	press(t, New(b), runes("c"), runes("4"), runes("2"), tea.KeyMsg{Type: tea.KeyBackspace})

	assert.Equal(t, []string{"companyId=4", "companyId=42", "companyId=4"}, b.calls)
}

func TestModel_TabCyclesFocus(t *testing.T) {
	m := New(newFakeBrowser(baseView()))

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusName, m.focus)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusCompany, m.focus)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusTable, m.focus)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, focusCompany, m.focus)
}

func TestModel_EnterShowsDetail(t *testing.T) {
	m := press(t, New(newFakeBrowser(baseView())), tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, m.detail)
	assert.Equal(t, int64(1), m.detail.ID)
	assert.Contains(t, m.View(), "#1 Kofola 0.5")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.detail)
}

func TestModel_Quit(t *testing.T) {
	m := New(newFakeBrowser(baseView()))

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.(Model).View())
}

func TestNextStatusAndLimit(t *testing.T) {
	assert.Equal(t, domain.StatusActive, nextStatus(domain.StatusAll))
	assert.Equal(t, domain.StatusInactive, nextStatus(domain.StatusActive))
	assert.Equal(t, domain.StatusAll, nextStatus(domain.StatusInactive))

	assert.Equal(t, 50, nextLimit(25))
	assert.Equal(t, 10, nextLimit(100))
}

func TestStatusLine(t *testing.T) {
	v := listview.View{
		Mode: listview.ModeSearch, Page: 2, TotalPages: 3, TotalItems: 60, Approximate: true,
		Status: domain.StatusActive, Sort: domain.SortByName, Order: domain.OrderAsc, Limit: 25,
	}
	assert.Equal(t, "search mode • page 2/3 • ≥60 items • status active • sort name asc • 25 per page", StatusLine(v))

	v = listview.View{Mode: listview.ModeServer, Page: 1, Status: domain.StatusAll, Sort: domain.SortByRegisteredAt, Order: domain.OrderDesc, Limit: 10}
	assert.Contains(t, StatusLine(v), "page 1/1 • 0 items")
}

func TestDetailPanel(t *testing.T) {
	p := domain.Product{ID: 7, Name: "Kofola 0.5", CompanyID: 3, RegisteredByID: 9, Packaging: domain.PackagingPET, Deposit: 25, Volume: 500}

	out := DetailPanel(p, "Kofola a.s.")
	assert.Contains(t, out, "#7 Kofola 0.5")
	assert.Contains(t, out, "Kofola a.s.")
	assert.Contains(t, out, "Registered by #9")

	assert.Contains(t, DetailPanel(p, ""), "Company #3")
}
