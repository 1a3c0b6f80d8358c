package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Subscriptions", 2024, "2024 Subscriptions"},
		{"2023 Subscriptions", 2024, "2023 Subscriptions"},
		{" Report ", 2025, "2025 Report"},
		{"", 2024, ""},
		{"1234Report", 2024, "2024 1234Report"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestReportRows(t *testing.T) {
	report := core.Report{
		Totals: core.Totals{
			MonthlyEquivalent: decimal.RequireFromString("40"),
			YearlyActual:      decimal.RequireFromString("120"),
			AnnualRecurring:   decimal.RequireFromString("480"),
			OneTime:           decimal.RequireFromString("500"),
			AvgMonthlySpend:   decimal.RequireFromString("20"),
			ActiveCount:       2,
			TotalCount:        3,
		},
		TopCharges:        core.Series{Labels: []string{"Hosting", "Domain"}, Values: []float64{30, 10}},
		CurrencyBreakdown: core.Series{Labels: []string{"USD"}, Values: []float64{40}},
		SpendingTrend:     []core.TimeBucket{{Label: "Jan 2024", Value: 30}, {Label: "Feb 2024", Value: 40}},
		Window: core.Window{
			From: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		GeneratedAt: time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC),
	}

	rows := ReportRows(report)

	find := func(label string) []interface{} {
		for _, r := range rows {
			if len(r) > 0 && r[0] == label {
				return r
			}
		}
		return nil
	}

	if r := find("Window"); r == nil || r[1] != "2023-03" || r[2] != "2024-02" {
		t.Errorf("window row = %v", r)
	}
	if r := find("Monthly cost"); r == nil || r[1] != 40.0 {
		t.Errorf("monthly cost row = %v", r)
	}
	if r := find("Active subscriptions"); r == nil || r[1] != 2 {
		t.Errorf("active row = %v", r)
	}
	if r := find("Hosting"); r == nil || r[1] != 30.0 {
		t.Errorf("top row = %v", r)
	}
	if r := find("Feb 2024"); r == nil || r[1] != 40.0 {
		t.Errorf("trend row = %v", r)
	}
	if find("Status") != nil {
		t.Error("healthy report must not carry a degraded status row")
	}

	report.Degraded = true
	if r := ReportRows(report)[3]; r[0] != "Status" {
		t.Errorf("degraded report row = %v", r)
	}
}

func TestLoadCredentials(t *testing.T) {
	ctx := context.Background()
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := loadCredentials(ctx, Config{}); err == nil {
		t.Error("expected error without credentials")
	}

	got, err := loadCredentials(ctx, Config{CredentialsJSON: `{"type":"service_account"}`})
	if err != nil || string(got) != `{"type":"service_account"}` {
		t.Errorf("inline credentials = %s, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	got, err = loadCredentials(ctx, Config{})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Errorf("env file credentials = %s, %v", got, err)
	}

	if _, err := loadCredentials(ctx, Config{CredentialsFile: "/does/not/exist.json"}); err == nil {
		t.Error("expected error for missing credentials file")
	}
}

func TestNewExporter_RequiresSpreadsheet(t *testing.T) {
	if _, err := NewExporter(context.Background(), Config{CredentialsJSON: "{}"}); err == nil {
		t.Error("expected error without spreadsheet id")
	}
}

func TestExportReport_NoService(t *testing.T) {
	e := newExporter(nil, Config{SpreadsheetID: "abc"})
	if e.sheetBase != DefaultSheetName {
		t.Errorf("sheetBase = %q", e.sheetBase)
	}
	if err := e.ExportReport(context.Background(), core.Report{}); err == nil {
		t.Error("expected error without service")
	}
}
