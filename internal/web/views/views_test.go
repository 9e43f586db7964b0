package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func completedClash() core.EnrichedClash {
	c := core.NewEnrichedClash(core.RawClash{ID: "clash-1", Item1: "Duct <A>", Item2: "Beam", Distance: "-0.05"})
	c.Status = core.StatusCompleted
	c.AISeverity = core.SeverityCritical
	c.AIResponsibility = core.DisciplineMEP
	c.AIDescription = "Reroute duct below beam"
	return c
}

func TestErrorAlert(t *testing.T) {
	got := render(t, ErrorAlert(`Bad <script>`, "Try again", "IMP001"))

	for _, want := range []string{"Bad &lt;script&gt;", "Try again", "IMP001", `role="alert"`} {
		if !strings.Contains(got, want) {
			t.Errorf("ErrorAlert() missing %q in %s", want, got)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Error("ErrorAlert() did not escape the message")
	}
}

func TestClashTable(t *testing.T) {
	tests := []struct {
		name    string
		clashes []core.EnrichedClash
		want    []string
		notWant []string
	}{
		{
			name:    "empty",
			clashes: nil,
			want:    []string{"No clashes found matching this filter."},
		},
		{
			name:    "completed row shows triage",
			clashes: []core.EnrichedClash{completedClash()},
			want: []string{
				"clash-1", "Duct &lt;A&gt;", "Critical", "MEP",
				"Reroute duct below beam", `data-severity="Critical"`, `data-discipline="MEP"`,
			},
			notWant: []string{"Pending"},
		},
		{
			name:    "pending row hides triage",
			clashes: []core.EnrichedClash{core.NewEnrichedClash(core.RawClash{ID: "clash-2", Item1: "Pipe"})},
			want:    []string{"clash-2", "Pending", `data-status="PENDING"`},
			notWant: []string{"Unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(t, ClashTable(tt.clashes))
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("ClashTable() missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("ClashTable() unexpectedly contains %q", w)
				}
			}
		})
	}
}

func TestStatsPanel(t *testing.T) {
	clashes := []core.EnrichedClash{completedClash(), core.NewEnrichedClash(core.RawClash{ID: "clash-2"})}
	got := render(t, StatsPanel(core.ComputeStats(clashes)))

	for _, want := range []string{
		"Total Clashes", "50% of total", "Critical", "MEP", "Unknown",
		`fill="` + core.SeverityColors[core.SeverityCritical] + `"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("StatsPanel() missing %q", want)
		}
	}
}

func TestFilterHref(t *testing.T) {
	tests := []struct {
		severity string
		want     string
	}{
		{"", "/"},
		{"Critical", "/?severity=Critical"},
		{"Design Issue", "/?severity=Design+Issue"},
	}
	for _, tt := range tests {
		if got := filterHref(tt.severity); got != tt.want {
			t.Errorf("filterHref(%q) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestDashboard(t *testing.T) {
	t.Run("no dataset shows import form and key warning", func(t *testing.T) {
		got := render(t, Dashboard(DashboardData{}))
		for _, want := range []string{`id="import-form"`, "Missing API Key", "/static/app.js"} {
			if !strings.Contains(got, want) {
				t.Errorf("Dashboard() missing %q", want)
			}
		}
		if strings.Contains(got, `id="clash-table"`) {
			t.Error("Dashboard() rendered a table without a dataset")
		}
	})

	t.Run("dataset shows report", func(t *testing.T) {
		clashes := []core.EnrichedClash{completedClash(), core.NewEnrichedClash(core.RawClash{ID: "clash-2"})}
		got := render(t, Dashboard(DashboardData{
			ClassifierReady: true,
			Provider:        "gemini",
			HasDataset:      true,
			FileName:        "report.csv",
			Stats:           core.ComputeStats(clashes),
			Clashes:         clashes,
			Filter:          core.ClashFilter{Severity: core.SeverityCritical},
		}))
		for _, want := range []string{
			"report.csv", "Loaded 2 items", `id="start-triage"`, `id="clash-table"`,
			"severity=Critical", `data-severity="Critical" data-active`, "gemini",
			`<progress id="progress-bar" max="100" value="50">`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("Dashboard() missing %q", want)
			}
		}
		if strings.Contains(got, "Missing API Key") {
			t.Error("Dashboard() shows key warning with a classifier")
		}
		if strings.Contains(got, `data-severity="" data-active`) {
			t.Error("Dashboard() marks All active while filtering")
		}
	})

	t.Run("start disabled without classifier", func(t *testing.T) {
		clashes := []core.EnrichedClash{core.NewEnrichedClash(core.RawClash{ID: "clash-1"})}
		got := render(t, Dashboard(DashboardData{
			HasDataset: true,
			Stats:      core.ComputeStats(clashes),
			Clashes:    clashes,
		}))
		if !strings.Contains(got, `id="start-triage" class="btn btn-primary" disabled`) {
			t.Error("Dashboard() start button should be disabled without a classifier")
		}
	})
}
