package cmd

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ivankomartin/deposit-console/internal/domain"
	"github.com/ivankomartin/deposit-console/internal/tui"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// productTable renders rows the way the terminal browser lays them out.
// Companies missing from names are shown by id.
func productTable(rows []domain.Product, names map[int64]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Name", "Packaging", "Deposit", "Volume", "Company", "Registered at", "Status").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, p := range rows {
		company, ok := names[p.CompanyID]
		if !ok {
			company = "#" + p.CompanyKey()
		}
		t.Row(
			strconv.FormatInt(p.ID, 10),
			p.Name,
			tui.FormatPackaging(p.Packaging),
			tui.FormatDeposit(p.Deposit),
			tui.FormatVolume(p.Volume),
			company,
			tui.FormatDate(p.RegisteredAt),
			tui.FormatStatus(p.Active),
		)
	}
	return t.Render()
}
