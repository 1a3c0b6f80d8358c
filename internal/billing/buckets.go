package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"subtrack/internal/core"
)

// BucketMode selects what a month bucket holds.
type BucketMode string

const (
	// ModeSpendingTrend sums the monthly equivalents of active charges that
	// existed by the end of each month. Values are cumulative snapshots,
	// not per-month deltas.
	ModeSpendingTrend BucketMode = "spending_trend"
	// ModeGrowthCount counts charges of any status that existed by the end
	// of each month.
	ModeGrowthCount BucketMode = "growth_count"
)

// MaxBuckets caps the length of a series.
const MaxBuckets = 12

// BucketLabelLayout formats bucket labels, e.g. "Jan 2024".
const BucketLabelLayout = "Jan 2006"

// ParseBucketMode returns the mode named by s and whether it is supported.
func ParseBucketMode(s string) (BucketMode, bool) {
	switch BucketMode(s) {
	case ModeSpendingTrend, ModeGrowthCount:
		return BucketMode(s), true
	}
	return BucketMode(s), false
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// monthSpan counts whole calendar months from a to b. Negative spans are 0.
func monthSpan(a, b time.Time) int {
	n := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if n < 0 {
		return 0
	}
	return n
}

// ResolveWindow fills in missing bounds. With no bounds the window is the
// trailing twelve months ending at now. Both bounds come back as the first
// instant of their month.
func ResolveWindow(w core.Window, now time.Time) core.Window {
	to := w.To
	if to.IsZero() {
		to = now
	}
	to = monthStart(to)

	from := w.From
	if from.IsZero() {
		from = to.AddDate(0, -(MaxBuckets - 1), 0)
	}
	return core.Window{From: monthStart(from), To: to}
}

// BucketByMonth builds one bucket per calendar month between from and to,
// capped at MaxBuckets and anchored at to's month. Labels run oldest first.
// Charges without a parseable creation date are left out. Unknown modes
// yield zero-valued buckets.
func BucketByMonth(charges []core.RecurringCharge, from, to time.Time, mode BucketMode) []core.TimeBucket {
	count := monthSpan(from, to) + 1
	if count > MaxBuckets {
		count = MaxBuckets
	}
	anchor := monthStart(to)
	buckets := make([]core.TimeBucket, count)

	var g errgroup.Group
	for i := 0; i < count; i++ {
		start := anchor.AddDate(0, -(count - 1 - i), 0)
		end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		buckets[i].Label = start.Format(BucketLabelLayout)

		g.Go(func() error {
			buckets[i].Value = bucketValue(charges, end, mode)
			return nil
		})
	}
	_ = g.Wait()

	return buckets
}

func bucketValue(charges []core.RecurringCharge, monthEnd time.Time, mode BucketMode) float64 {
	switch mode {
	case ModeSpendingTrend:
		sum := decimal.Zero
		for _, c := range charges {
			if !c.CreatedBy(monthEnd) {
				continue
			}
			if conv, ok := recurringActive(c); ok {
				sum = sum.Add(conv.Monthly(c.Amount))
			}
		}
		return core.Round2(sum)
	case ModeGrowthCount:
		n := 0
		for _, c := range charges {
			if c.CreatedBy(monthEnd) {
				n++
			}
		}
		return float64(n)
	}
	return 0
}
