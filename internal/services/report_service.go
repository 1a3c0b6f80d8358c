package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"subtrack/internal/billing"
	"subtrack/internal/core"
	"subtrack/internal/ports"
)

// ReportService loads charge snapshots and runs the normalizer over them.
// It is the error boundary between stores and presentation: a failed load
// is logged and degrades to an all-zero result instead of an error.
type ReportService struct {
	charges    ports.ChargeLister
	normalizer *billing.Normalizer
}

func NewReportService(charges ports.ChargeLister, normalizer *billing.Normalizer) *ReportService {
	if normalizer == nil {
		normalizer = billing.NewNormalizer(billing.DefaultConfig())
	}
	return &ReportService{
		charges:    charges,
		normalizer: normalizer,
	}
}

// Normalizer exposes the configured normalizer.
func (s *ReportService) Normalizer() *billing.Normalizer {
	return s.normalizer
}

// load fetches the charges relevant to w. An explicit window end excludes
// charges created after it; the default window reads everything.
func (s *ReportService) load(ctx context.Context, w core.Window) ([]core.RecurringCharge, error) {
	if s.charges == nil {
		return nil, fmt.Errorf("no charge store configured")
	}

	var filter ports.ChargeFilter
	if !w.To.IsZero() {
		end := s.normalizer.Window(w).To.AddDate(0, 1, 0).Add(-time.Nanosecond)
		filter.CreatedTo = &end
	}

	raws, err := s.charges.ListCharges(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	logAnomalies(ctx, raws)
	return core.NormalizeAll(raws), nil
}

// Dashboard returns the full report for w. It never fails; check
// Report.Degraded to learn whether the data could be loaded.
func (s *ReportService) Dashboard(ctx context.Context, w core.Window) core.Report {
	charges, err := s.load(ctx, w)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load charges for report, serving empty report", "error", err)
		return s.normalizer.EmptyReport(w)
	}
	return s.normalizer.Build(charges, w)
}

// Totals returns the scalar aggregates and whether they are degraded.
func (s *ReportService) Totals(ctx context.Context, w core.Window) (core.Totals, bool) {
	charges, err := s.load(ctx, w)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load charges for totals", "error", err)
		return core.Totals{}, true
	}
	return billing.ComputeTotals(charges), false
}

// Trend returns one series over w in the given mode.
func (s *ReportService) Trend(ctx context.Context, w core.Window, mode billing.BucketMode) ([]core.TimeBucket, bool) {
	charges, err := s.load(ctx, w)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load charges for trend", "error", err, "mode", mode)
		return []core.TimeBucket{}, true
	}
	return s.normalizer.Series(charges, w, mode), false
}

// Top ranks charges by monthly equivalent. n <= 0 uses the configured size.
func (s *ReportService) Top(ctx context.Context, w core.Window, n int) (core.Series, bool) {
	charges, err := s.load(ctx, w)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load charges for ranking", "error", err)
		return core.EmptySeries(), true
	}
	return s.normalizer.TopN(charges, n), false
}

func (s *ReportService) Currencies(ctx context.Context, w core.Window) (core.Series, bool) {
	charges, err := s.load(ctx, w)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load charges for currency breakdown", "error", err)
		return core.EmptySeries(), true
	}
	return s.normalizer.CurrencyBreakdown(charges), false
}

// Breakdowns holds the categorical distributions of a charge set.
type Breakdowns struct {
	Status    core.Series `json:"status_distribution"`
	Cycle     core.Series `json:"billing_cycle_distribution"`
	CycleCost core.Series `json:"billing_cycle_costs"`
}

func (s *ReportService) Breakdowns(ctx context.Context, w core.Window) (Breakdowns, bool) {
	charges, err := s.load(ctx, w)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load charges for breakdowns", "error", err)
		return Breakdowns{Status: core.EmptySeries(), Cycle: core.EmptySeries(), CycleCost: core.EmptySeries()}, true
	}
	return Breakdowns{
		Status:    billing.StatusDistribution(charges),
		Cycle:     billing.CycleDistribution(charges),
		CycleCost: billing.CycleCostDistribution(charges),
	}, false
}

// logAnomalies reports rows the normalizer will neutralise. The normalizer
// itself stays silent.
func logAnomalies(ctx context.Context, raws []core.RawCharge) {
	var badAmount, badCycle, badStatus, badDate int
	for _, r := range raws {
		if a, ok := core.ParseAmount(r.Amount); !ok || !core.InRange(a) {
			badAmount++
		}
		if !core.ParseBillingCycle(r.BillingCycle).Known() {
			badCycle++
		}
		if !core.ParseStatus(r.Status).Known() {
			badStatus++
		}
		if _, ok := core.ParseTimestamp(r.CreatedAt); !ok {
			badDate++
		}
	}
	if badAmount+badCycle+badStatus+badDate == 0 {
		return
	}
	slog.WarnContext(ctx, "Malformed charge rows treated as neutral",
		"rows", len(raws),
		"invalid_amount", badAmount,
		"unknown_cycle", badCycle,
		"unknown_status", badStatus,
		"invalid_created_at", badDate)
}
