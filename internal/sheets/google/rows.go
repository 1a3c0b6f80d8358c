package google

import (
	"time"

	"subtrack/internal/core"
)

// ReportRows flattens a report into sheet rows: a summary block followed by
// one block per breakdown and series, separated by blank rows.
func ReportRows(r core.Report) [][]interface{} {
	t := r.Totals
	rows := [][]interface{}{
		{"Subscription report"},
		{"Generated at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Window", windowBound(r.Window.From), windowBound(r.Window.To)},
	}
	if r.Degraded {
		rows = append(rows, []interface{}{"Status", "degraded: data unavailable"})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"Totals"},
		[]interface{}{"Monthly cost", core.Round2(t.MonthlyEquivalent)},
		[]interface{}{"Yearly subscriptions", core.Round2(t.YearlyActual)},
		[]interface{}{"Annual cost", core.Round2(t.AnnualRecurring)},
		[]interface{}{"One-time cost", core.Round2(t.OneTime)},
		[]interface{}{"Average monthly spend", core.Round2(t.AvgMonthlySpend)},
		[]interface{}{"Active subscriptions", t.ActiveCount},
		[]interface{}{"Total subscriptions", t.TotalCount},
	)

	rows = appendSeries(rows, "Top subscriptions", r.TopCharges)
	rows = appendSeries(rows, "Currency breakdown", r.CurrencyBreakdown)
	rows = appendSeries(rows, "Status distribution", r.StatusDistribution)
	rows = appendSeries(rows, "Billing cycle distribution", r.CycleDistribution)
	rows = appendSeries(rows, "Billing cycle costs", r.CycleCostDistribution)
	rows = appendBuckets(rows, "Spending trend", r.SpendingTrend)
	rows = appendBuckets(rows, "Growth", r.Growth)
	return rows
}

func appendSeries(rows [][]interface{}, title string, s core.Series) [][]interface{} {
	rows = append(rows, []interface{}{}, []interface{}{title})
	for i, label := range s.Labels {
		var v float64
		if i < len(s.Values) {
			v = s.Values[i]
		}
		rows = append(rows, []interface{}{label, v})
	}
	return rows
}

func appendBuckets(rows [][]interface{}, title string, buckets []core.TimeBucket) [][]interface{} {
	rows = append(rows, []interface{}{}, []interface{}{title})
	for _, b := range buckets {
		rows = append(rows, []interface{}{b.Label, b.Value})
	}
	return rows
}

func windowBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(core.WindowLayout)
}
