package billing

import (
	"golang.org/x/sync/errgroup"

	"subtrack/internal/core"
)

// Window resolves w against the normalizer clock.
func (n *Normalizer) Window(w core.Window) core.Window {
	return ResolveWindow(w, n.cfg.Now())
}

// Totals is ComputeTotals.
func (n *Normalizer) Totals(charges []core.RecurringCharge) core.Totals {
	return ComputeTotals(charges)
}

// TopN ranks with the configured size when size <= 0.
func (n *Normalizer) TopN(charges []core.RecurringCharge, size int) core.Series {
	if size <= 0 {
		size = n.cfg.TopN
	}
	return TopN(charges, size)
}

// CurrencyBreakdown groups with the configured default currency.
func (n *Normalizer) CurrencyBreakdown(charges []core.RecurringCharge) core.Series {
	return CurrencyBreakdown(charges, n.cfg.DefaultCurrency)
}

// Series buckets charges over the resolved window.
func (n *Normalizer) Series(charges []core.RecurringCharge, w core.Window, mode BucketMode) []core.TimeBucket {
	rw := n.Window(w)
	return BucketByMonth(charges, rw.From, rw.To, mode)
}

// Build assembles the full report for charges over w.
func (n *Normalizer) Build(charges []core.RecurringCharge, w core.Window) core.Report {
	rw := n.Window(w)
	report := core.Report{
		Totals:                ComputeTotals(charges),
		StatusDistribution:    StatusDistribution(charges),
		CycleDistribution:     CycleDistribution(charges),
		CycleCostDistribution: CycleCostDistribution(charges),
		CurrencyBreakdown:     n.CurrencyBreakdown(charges),
		TopCharges:            TopN(charges, n.cfg.TopN),
		Window:                rw,
		GeneratedAt:           n.cfg.Now(),
	}

	var g errgroup.Group
	g.Go(func() error {
		report.SpendingTrend = BucketByMonth(charges, rw.From, rw.To, ModeSpendingTrend)
		return nil
	})
	g.Go(func() error {
		report.Growth = BucketByMonth(charges, rw.From, rw.To, ModeGrowthCount)
		return nil
	})
	_ = g.Wait()

	return report
}

// EmptyReport is the all-zero report served when charges cannot be loaded.
func (n *Normalizer) EmptyReport(w core.Window) core.Report {
	return core.Report{
		StatusDistribution:    core.EmptySeries(),
		CycleDistribution:     core.EmptySeries(),
		CycleCostDistribution: core.EmptySeries(),
		CurrencyBreakdown:     core.EmptySeries(),
		TopCharges:            core.EmptySeries(),
		SpendingTrend:         []core.TimeBucket{},
		Growth:                []core.TimeBucket{},
		Window:                n.Window(w),
		GeneratedAt:           n.cfg.Now(),
		Degraded:              true,
	}
}
