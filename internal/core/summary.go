package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WindowLayout is the month granularity used for report windows.
const WindowLayout = "2006-01"

type (
	// Totals holds the scalar aggregates of a charge set. Values are exact;
	// they are rounded to two decimals only when marshalled.
	Totals struct {
		MonthlyEquivalent decimal.Decimal
		YearlyActual      decimal.Decimal
		AnnualRecurring   decimal.Decimal
		OneTime           decimal.Decimal
		AvgMonthlySpend   decimal.Decimal
		ActiveCount       int
		TotalCount        int
	}

	// Series is a labelled breakdown ready for charting.
	Series struct {
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
	}

	// TimeBucket is one calendar month of a time series.
	TimeBucket struct {
		Label string  `json:"label"`
		Value float64 `json:"value"`
	}

	// Window bounds a report by month. A zero window means the trailing
	// twelve months.
	Window struct {
		From time.Time
		To   time.Time
	}

	Report struct {
		Totals                Totals       `json:"totals"`
		StatusDistribution    Series       `json:"status_distribution"`
		CycleDistribution     Series       `json:"billing_cycle_distribution"`
		CycleCostDistribution Series       `json:"billing_cycle_costs"`
		CurrencyBreakdown     Series       `json:"currency_breakdown"`
		TopCharges            Series       `json:"top_subscriptions"`
		SpendingTrend         []TimeBucket `json:"spending_trend"`
		Growth                []TimeBucket `json:"growth"`
		Window                Window       `json:"window"`
		GeneratedAt           time.Time    `json:"generated_at"`
		Degraded              bool         `json:"degraded,omitempty"`
	}
)

type totalsJSON struct {
	TotalMonthlyCost    float64 `json:"total_monthly_cost"`
	TotalYearlyCost     float64 `json:"total_yearly_cost"`
	TotalAnnualCost     float64 `json:"total_annual_cost"`
	TotalOneTimeCost    float64 `json:"total_onetime_cost"`
	AvgMonthlySpend     float64 `json:"avg_monthly_spend"`
	ActiveSubscriptions int     `json:"active_subscriptions"`
	TotalSubscriptions  int     `json:"total_subscriptions"`
}

// MarshalJSON renders the totals with the field names dashboards expect.
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(totalsJSON{
		TotalMonthlyCost:    Round2(t.MonthlyEquivalent),
		TotalYearlyCost:     Round2(t.YearlyActual),
		TotalAnnualCost:     Round2(t.AnnualRecurring),
		TotalOneTimeCost:    Round2(t.OneTime),
		AvgMonthlySpend:     Round2(t.AvgMonthlySpend),
		ActiveSubscriptions: t.ActiveCount,
		TotalSubscriptions:  t.TotalCount,
	})
}

func (t *Totals) UnmarshalJSON(data []byte) error {
	var v totalsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Totals{
		MonthlyEquivalent: decimal.NewFromFloat(v.TotalMonthlyCost),
		YearlyActual:      decimal.NewFromFloat(v.TotalYearlyCost),
		AnnualRecurring:   decimal.NewFromFloat(v.TotalAnnualCost),
		OneTime:           decimal.NewFromFloat(v.TotalOneTimeCost),
		AvgMonthlySpend:   decimal.NewFromFloat(v.AvgMonthlySpend),
		ActiveCount:       v.ActiveSubscriptions,
		TotalCount:        v.TotalSubscriptions,
	}
	return nil
}

// IsZero reports whether no bound was supplied.
func (w Window) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		From string `json:"from"`
		To   string `json:"to"`
	}{
		From: formatMonth(w.From),
		To:   formatMonth(w.To),
	})
}

func formatMonth(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(WindowLayout)
}

// EmptySeries returns a series with non-nil slices so it marshals as [].
func EmptySeries() Series {
	return Series{Labels: []string{}, Values: []float64{}}
}

// Len returns the number of entries.
func (s Series) Len() int {
	return len(s.Labels)
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var v struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var out Window
	if v.From != "" {
		t, err := time.Parse(WindowLayout, v.From)
		if err != nil {
			return err
		}
		out.From = t
	}
	if v.To != "" {
		t, err := time.Parse(WindowLayout, v.To)
		if err != nil {
			return err
		}
		out.To = t
	}
	*w = out
	return nil
}
