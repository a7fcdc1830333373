// Package tui is the terminal product browser. It renders a live list
// controller and forwards key presses to its setters.
package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/listview"
)

// Browser is the list state the TUI drives. *listview.Controller
// implements it.
type Browser interface {
	View() listview.View
	Subscribe() (<-chan struct{}, func())
	SetPage(n int)
	SetLimit(n int)
	SetStatus(s domain.Status)
	SetNameQuery(s string)
	SetCompanyID(s string)
	ToggleSort(field domain.SortField)
	Refresh()
}

type focus int

const (
	focusTable focus = iota
	focusName
	focusCompany
)

// viewChangedMsg is sent whenever the browser published a new view.
type viewChangedMsg struct{}

// Model is the bubbletea model of the product browser.
type Model struct {
	browser     Browser
	updates     <-chan struct{}
	unsubscribe func()

	view    listview.View
	table   table.Model
	name    textinput.Model
	company textinput.Model
	focus   focus
	detail  *domain.Product

	width    int
	quitting bool
}

// New creates a browser model bound to b.
func New(b Browser) Model {
	updates, unsubscribe := b.Subscribe()

	name := textinput.New()
	name.Placeholder = "search name"
	name.Prompt = ""
	name.CharLimit = 100
	name.Width = 24

	company := textinput.New()
	company.Placeholder = "company id"
	company.Prompt = ""
	company.CharLimit = 12
	company.Width = 10

	t := table.New(
		table.WithColumns(columns()),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#2E7D32"))
	t.SetStyles(s)

	m := Model{
		browser:     b,
		updates:     updates,
		unsubscribe: unsubscribe,
		table:       t,
		name:        name,
		company:     company,
	}
	m.setView(b.View())
	return m
}

func columns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: 28},
		{Title: "Packaging", Width: 10},
		{Title: "Deposit", Width: 9},
		{Title: "Volume", Width: 8},
		{Title: "Company", Width: 8},
		{Title: "Registered at", Width: 16},
		{Title: "Status", Width: 8},
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return viewChangedMsg{}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.updates)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewChangedMsg:
		m.setView(m.browser.View())
		return m, waitForChange(m.updates)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetWidth(max(msg.Width-2, 20))
		m.table.SetHeight(max(msg.Height-10, 3))
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m.quit()
		case tea.KeyTab:
			return m.setFocus((m.focus + 1) % 3)
		case tea.KeyShiftTab:
			return m.setFocus((m.focus + 2) % 3)
		}
		if m.focus != focusTable {
			return m.updateInput(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

func (m Model) setFocus(f focus) (tea.Model, tea.Cmd) {
	m.focus = f
	m.name.Blur()
	m.company.Blur()
	var cmd tea.Cmd
	switch f {
	case focusName:
		m.table.Blur()
		cmd = m.name.Focus()
	case focusCompany:
		m.table.Blur()
		cmd = m.company.Focus()
	default:
		m.table.Focus()
	}
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		return m.setFocus(focusTable)
	}

	var cmd tea.Cmd
	if m.focus == focusName {
		before := m.name.Value()
		m.name, cmd = m.name.Update(msg)
		if v := m.name.Value(); v != before {
			m.browser.SetNameQuery(v)
		}
		return m, cmd
	}

	before := m.company.Value()
	m.company, cmd = m.company.Update(msg)
	if v := m.company.Value(); v != before {
		m.browser.SetCompanyID(v)
	}
	return m, cmd
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.view
	switch msg.String() {
	case "q":
		return m.quit()
	case "esc":
		m.detail = nil
	case "enter":
		if i := m.table.Cursor(); i >= 0 && i < len(v.Rows) {
			p := v.Rows[i]
			m.detail = &p
		}
	case "n", "right":
		if v.Page < v.TotalPages {
			m.browser.SetPage(v.Page + 1)
		}
	case "p", "left":
		if v.Page > 1 {
			m.browser.SetPage(v.Page - 1)
		}
	case "s":
		m.browser.SetStatus(nextStatus(v.Status))
	case "l":
		m.browser.SetLimit(nextLimit(v.Limit))
	case "a":
		m.browser.ToggleSort(domain.SortByName)
	case "d":
		m.browser.ToggleSort(domain.SortByRegisteredAt)
	case "/":
		return m.setFocus(focusName)
	case "c":
		return m.setFocus(focusCompany)
	case "ctrl+r":
		m.browser.Refresh()
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func nextStatus(s domain.Status) domain.Status {
	all := domain.ValidStatuses()
	i := slices.Index(all, s)
	return all[(i+1)%len(all)]
}

func nextLimit(n int) int {
	sizes := listview.PageSizes()
	i := slices.Index(sizes, n)
	return sizes[(i+1)%len(sizes)]
}

// setView renders v into the table and keeps unfocused inputs in sync with
// the list state.
func (m *Model) setView(v listview.View) {
	if v.Page != m.view.Page || v.Query != m.view.Query {
		m.table.SetCursor(0)
	}
	m.view = v

	rows := make([]table.Row, 0, len(v.Rows))
	for _, p := range v.Rows {
		rows = append(rows, table.Row{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			FormatPackaging(p.Packaging),
			FormatDeposit(p.Deposit),
			FormatVolume(p.Volume),
			"#" + p.CompanyKey(),
			FormatDate(p.RegisteredAt),
			FormatStatus(p.Active),
		})
	}
	m.table.SetRows(rows)

	if m.focus != focusName && m.name.Value() != v.NameQuery {
		m.name.SetValue(v.NameQuery)
	}
	if m.focus != focusCompany && m.company.Value() != v.CompanyID {
		m.company.SetValue(v.CompanyID)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := m.view
	var b strings.Builder

	b.WriteString(titleStyle.Render("Deposit products"))
	b.WriteString("  ")
	b.WriteString(m.label("Name", focusName))
	b.WriteString(m.name.View())
	b.WriteString("  ")
	b.WriteString(m.label("Company", focusCompany))
	b.WriteString(m.company.View())
	b.WriteString("\n\n")

	b.WriteString(statusStyle.Render(StatusLine(v)))
	b.WriteString("\n")

	switch {
	case v.IsError:
		b.WriteString(errorStyle.Render("Failed to load products: " + v.Error))
	case v.IsLoading && v.Placeholder:
		b.WriteString(loadingStyle.Render("Loading… showing previous page"))
	case v.IsLoading:
		b.WriteString(loadingStyle.Render("Loading…"))
	case len(v.Rows) == 0:
		b.WriteString(mutedStyle.Render("No products found."))
	}
	b.WriteString("\n")

	b.WriteString(tableBorder.Render(m.table.View()))
	b.WriteString("\n")

	if m.detail != nil {
		b.WriteString(DetailPanel(*m.detail, ""))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("tab focus • / name • c company • s status • a/d sort • n/p page • l limit • enter detail • ctrl+r refresh • q quit"))
	return b.String()
}

func (m Model) label(text string, f focus) string {
	if m.focus == f {
		return focusedStyle.Render(text+":") + " "
	}
	return labelStyle.Render(text+":") + " "
}

// StatusLine summarizes the mode, paging, and ordering of a view.
func StatusLine(v listview.View) string {
	total := strconv.Itoa(v.TotalItems)
	if v.Approximate {
		total = "≥" + total
	}
	sort := string(v.Sort) + " " + string(v.Order)
	return fmt.Sprintf("%s mode • page %d/%d • %s items • status %s • sort %s • %d per page",
		v.Mode, v.Page, max(v.TotalPages, 1), total, v.Status, sort, v.Limit)
}

// DetailPanel renders one product. An empty companyName shows the company id.
func DetailPanel(p domain.Product, companyName string) string {
	if companyName == "" {
		companyName = fmt.Sprintf("Company #%d", p.CompanyID)
	}
	lines := []string{
		focusedStyle.Render(fmt.Sprintf("#%d %s", p.ID, p.Name)),
		fmt.Sprintf("Packaging: %s   Deposit: %s   Volume: %s", FormatPackaging(p.Packaging), FormatDeposit(p.Deposit), FormatVolume(p.Volume)),
		fmt.Sprintf("%s   Registered by #%d   %s   %s", companyName, p.RegisteredByID, FormatDate(p.RegisteredAt), FormatStatus(p.Active)),
	}
	return tableBorder.Padding(0, 1).Render(strings.Join(lines, "\n"))
}
