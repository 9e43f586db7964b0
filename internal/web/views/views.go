// Package views renders the dashboard and its HTML fragments.
//
// Components are written in the .templ files; the _templ.go files are
// their generated Go. Run `templ generate` after editing a template.
package views

import (
	"net/url"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// DashboardData is everything the dashboard page shows.
type DashboardData struct {
	ClassifierReady bool
	Provider        string
	HasDataset      bool
	FileName        string
	Stats           core.Stats
	Clashes         []core.EnrichedClash
	Filter          core.ClashFilter
	ActiveRun       string
}

func statusLabel(s core.ClashStatus) string {
	switch s {
	case core.StatusProcessing:
		return "Processing..."
	case core.StatusFailed:
		return "Failed"
	default:
		return "Pending"
	}
}

// filterHref is the dashboard URL filtered to severity; "" means all.
func filterHref(severity string) string {
	if severity == "" {
		return "/"
	}
	return "/?" + url.Values{"severity": {severity}}.Encode()
}
