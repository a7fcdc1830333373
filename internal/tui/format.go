package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ivankomartin/deposit-console/internal/domain"
)

// FormatDeposit renders a deposit in minor units as euros.
func FormatDeposit(minor int64) string {
	return fmt.Sprintf("%d.%02d €", minor/100, minor%100)
}

// FormatVolume renders millilitres, switching to litres from 1000 ml.
func FormatVolume(ml int64) string {
	if ml >= 1000 {
		l := fmt.Sprintf("%.2f", float64(ml)/1000)
		l = strings.TrimRight(strings.TrimRight(l, "0"), ".")
		return l + " l"
	}
	return fmt.Sprintf("%d ml", ml)
}

// FormatDate renders an ISO-8601 timestamp as a local date and time. Values
// that do not parse are returned unchanged.
func FormatDate(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.Local().Format("2006-01-02 15:04")
}

// FormatPackaging renders a packaging kind for display.
func FormatPackaging(p domain.Packaging) string {
	switch p {
	case domain.PackagingPET:
		return "PET"
	case "":
		return ""
	default:
		s := string(p)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// FormatStatus renders the active flag.
func FormatStatus(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}
