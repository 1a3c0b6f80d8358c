package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"subtrack/internal/billing"
	"subtrack/internal/core"
)

func testNormalizer() *billing.Normalizer {
	return billing.NewNormalizer(billing.Config{
		DefaultCurrency: "USD",
		Now:             func() time.Time { return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC) },
	})
}

func scenarioCharges() []core.RawCharge {
	return []core.RawCharge{
		{ID: 1, Name: "Hosting", Amount: "30", BillingCycle: "monthly", Status: "active", CreatedAt: "2024-01-01"},
		{ID: 2, Name: "Domain", Amount: 120, BillingCycle: "yearly", Status: "active", CreatedAt: "2024-02-01"},
		{ID: 3, Name: "Desk", Amount: "500", BillingCycle: "one-time", Status: "active", CreatedAt: "2024-03-01"},
	}
}

func TestReportService_Dashboard(t *testing.T) {
	store := &fakeStore{charges: scenarioCharges()}
	svc := NewReportService(store, testNormalizer())

	report := svc.Dashboard(context.Background(), core.Window{})
	if report.Degraded {
		t.Fatal("report should not be degraded")
	}
	if core.Round2(report.Totals.MonthlyEquivalent) != 40 || report.Totals.ActiveCount != 2 {
		t.Errorf("totals = %+v", report.Totals)
	}
	if len(report.SpendingTrend) != billing.MaxBuckets {
		t.Errorf("trend length = %d", len(report.SpendingTrend))
	}
	if store.filters[0].CreatedTo != nil {
		t.Error("default window must not filter by creation date")
	}
}

func TestReportService_DashboardWindowFiltersFutureCharges(t *testing.T) {
	store := &fakeStore{charges: scenarioCharges()}
	svc := NewReportService(store, testNormalizer())

	w := core.Window{
		From: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	report := svc.Dashboard(context.Background(), w)

	if report.Totals.TotalCount != 1 {
		t.Fatalf("total count = %d, want 1", report.Totals.TotalCount)
	}
	to := store.filters[0].CreatedTo
	if to == nil || to.Month() != time.January || to.Day() != 31 {
		t.Fatalf("CreatedTo = %v, want end of January", to)
	}
	if len(report.SpendingTrend) != 3 || report.SpendingTrend[2].Label != "Jan 2024" {
		t.Errorf("trend = %+v", report.SpendingTrend)
	}
}

func TestReportService_WindowKeepsUndatedCharges(t *testing.T) {
	store := &fakeStore{charges: []core.RawCharge{
		{ID: 1, Name: "Legacy", Amount: "10", BillingCycle: "monthly", Status: "active", CreatedAt: "garbage"},
		{ID: 2, Name: "Hosting", Amount: "20", BillingCycle: "monthly", Status: "active", CreatedAt: "2024-01-01"},
		{ID: 3, Name: "Later", Amount: "40", BillingCycle: "monthly", Status: "active", CreatedAt: "2024-09-01"},
	}}
	svc := NewReportService(store, testNormalizer())

	totals, degraded := svc.Totals(context.Background(), core.Window{To: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)})
	if degraded {
		t.Fatal("totals should not be degraded")
	}
	if got := core.Round2(totals.MonthlyEquivalent); got != 30 || totals.TotalCount != 2 {
		t.Errorf("monthly = %v, count = %d; want 30 over 2 charges", got, totals.TotalCount)
	}
}

func TestReportService_OversizedAmountIsNeutral(t *testing.T) {
	store := &fakeStore{charges: append(scenarioCharges(),
		core.RawCharge{ID: 4, Name: "Typo", Amount: "1e400", BillingCycle: "monthly", Status: "active", CreatedAt: "2024-01-01"})}
	report := NewReportService(store, testNormalizer()).Dashboard(context.Background(), core.Window{})

	if _, err := json.Marshal(report); err != nil {
		t.Fatalf("report must stay encodable: %v", err)
	}
	if got := core.Round2(report.Totals.MonthlyEquivalent); got != 40 {
		t.Errorf("monthly = %v, want 40", got)
	}
}

func TestReportService_DegradesOnStoreError(t *testing.T) {
	svc := NewReportService(&fakeStore{err: errStoreDown}, testNormalizer())
	ctx := context.Background()

	report := svc.Dashboard(ctx, core.Window{})
	if !report.Degraded {
		t.Error("report should be degraded")
	}
	if !report.Totals.MonthlyEquivalent.IsZero() || len(report.SpendingTrend) != 0 || report.TopCharges.Len() != 0 {
		t.Errorf("degraded report should be empty: %+v", report)
	}

	if totals, degraded := svc.Totals(ctx, core.Window{}); !degraded || totals.ActiveCount != 0 {
		t.Errorf("Totals() = %+v, %v", totals, degraded)
	}
	if trend, degraded := svc.Trend(ctx, core.Window{}, billing.ModeGrowthCount); !degraded || len(trend) != 0 {
		t.Errorf("Trend() = %+v, %v", trend, degraded)
	}
	if top, degraded := svc.Top(ctx, core.Window{}, 5); !degraded || top.Len() != 0 {
		t.Errorf("Top() = %+v, %v", top, degraded)
	}
	if cur, degraded := svc.Currencies(ctx, core.Window{}); !degraded || cur.Len() != 0 {
		t.Errorf("Currencies() = %+v, %v", cur, degraded)
	}
	if b, degraded := svc.Breakdowns(ctx, core.Window{}); !degraded || b.Status.Len() != 0 {
		t.Errorf("Breakdowns() = %+v, %v", b, degraded)
	}
}

func TestReportService_NilStoreDegrades(t *testing.T) {
	svc := NewReportService(nil, nil)
	if report := svc.Dashboard(context.Background(), core.Window{}); !report.Degraded {
		t.Error("report without store should be degraded")
	}
}

func TestReportService_Slices(t *testing.T) {
	svc := NewReportService(&fakeStore{charges: scenarioCharges()}, testNormalizer())
	ctx := context.Background()

	top, degraded := svc.Top(ctx, core.Window{}, 1)
	if degraded || top.Len() != 1 || top.Labels[0] != "Hosting" {
		t.Errorf("Top() = %+v", top)
	}

	cur, _ := svc.Currencies(ctx, core.Window{})
	if cur.Len() != 1 || cur.Labels[0] != "USD" || cur.Values[0] != 40 {
		t.Errorf("Currencies() = %+v", cur)
	}

	growth, _ := svc.Trend(ctx, core.Window{}, billing.ModeGrowthCount)
	if growth[len(growth)-1].Value != 3 {
		t.Errorf("growth = %+v", growth)
	}

	b, _ := svc.Breakdowns(ctx, core.Window{})
	if b.Cycle.Len() != 3 || b.CycleCost.Len() != 2 {
		t.Errorf("Breakdowns() = %+v", b)
	}
}
