package billing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

const unknownLabel = "unknown"

// accumulator sums values per key and remembers first-seen key order.
type accumulator struct {
	order []string
	sums  map[string]decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{sums: make(map[string]decimal.Decimal)}
}

func (a *accumulator) add(key string, v decimal.Decimal) {
	cur, ok := a.sums[key]
	if !ok {
		a.order = append(a.order, key)
	}
	a.sums[key] = cur.Add(v)
}

type entry struct {
	label string
	value decimal.Decimal
}

func (a *accumulator) entries() []entry {
	out := make([]entry, len(a.order))
	for i, k := range a.order {
		out[i] = entry{label: k, value: a.sums[k]}
	}
	return out
}

func toSeries(entries []entry) core.Series {
	s := core.Series{
		Labels: make([]string, len(entries)),
		Values: make([]float64, len(entries)),
	}
	for i, e := range entries {
		s.Labels[i] = e.label
		s.Values[i] = core.Round2(e.value)
	}
	return s
}

func labelOr(s string) string {
	if s == "" {
		return unknownLabel
	}
	return s
}

// TopN ranks active recurring charges by monthly equivalent, summed per
// name, highest first. Equal values keep first-seen order. n <= 0 means
// DefaultTopN.
func TopN(charges []core.RecurringCharge, n int) core.Series {
	if n <= 0 {
		n = DefaultTopN
	}
	acc := newAccumulator()
	for _, c := range charges {
		if conv, ok := recurringActive(c); ok {
			acc.add(labelOr(c.Name), conv.Monthly(c.Amount))
		}
	}
	entries := acc.entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].value.GreaterThan(entries[j].value)
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return toSeries(entries)
}

// CurrencyBreakdown sums monthly equivalents of active recurring charges per
// currency code. Amounts are nominal; no conversion happens. Charges without
// a currency fall under defaultCurrency.
func CurrencyBreakdown(charges []core.RecurringCharge, defaultCurrency string) core.Series {
	acc := newAccumulator()
	for _, c := range charges {
		conv, ok := recurringActive(c)
		if !ok {
			continue
		}
		cur := strings.ToUpper(strings.TrimSpace(c.Currency))
		if cur == "" {
			cur = strings.ToUpper(defaultCurrency)
		}
		acc.add(labelOr(cur), conv.Monthly(c.Amount))
	}
	return toSeries(acc.entries())
}

// StatusDistribution counts charges per status.
func StatusDistribution(charges []core.RecurringCharge) core.Series {
	acc := newAccumulator()
	for _, c := range charges {
		acc.add(labelOr(string(c.Status)), decimal.NewFromInt(1))
	}
	return toSeries(acc.entries())
}

// CycleDistribution counts charges per billing cycle.
func CycleDistribution(charges []core.RecurringCharge) core.Series {
	acc := newAccumulator()
	for _, c := range charges {
		acc.add(labelOr(string(c.Cycle)), decimal.NewFromInt(1))
	}
	return toSeries(acc.entries())
}

// CycleCostDistribution sums monthly equivalents of active recurring charges
// per billing cycle.
func CycleCostDistribution(charges []core.RecurringCharge) core.Series {
	acc := newAccumulator()
	for _, c := range charges {
		if conv, ok := recurringActive(c); ok {
			acc.add(string(c.Cycle), conv.Monthly(c.Amount))
		}
	}
	return toSeries(acc.entries())
}
