// Package billing normalises heterogeneous recurring charges into comparable
// monthly and annual figures and month-bucketed series.
//
// This file holds the per-cycle conversion strategies. Each billing cycle has
// its own converter so a new cycle can be registered without touching the
// aggregations built on top of them.
package billing

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

var (
	twelve        = decimal.NewFromInt(12)
	three         = decimal.NewFromInt(3)
	four          = decimal.NewFromInt(4)
	thirty        = decimal.NewFromInt(30)
	fiftyTwo      = decimal.NewFromInt(52)
	daysPerYear   = decimal.NewFromInt(365)
	weeksPerMonth = decimal.RequireFromString("4.33")
)

// CycleConverter turns a face amount into its monthly and annual equivalents
// for one billing cycle.
type CycleConverter interface {
	Monthly(amount decimal.Decimal) decimal.Decimal
	Annual(amount decimal.Decimal) decimal.Decimal
}

type MonthlyConverter struct{}

func (MonthlyConverter) Monthly(a decimal.Decimal) decimal.Decimal { return a }
func (MonthlyConverter) Annual(a decimal.Decimal) decimal.Decimal  { return a.Mul(twelve) }

type YearlyConverter struct{}

func (YearlyConverter) Monthly(a decimal.Decimal) decimal.Decimal { return a.Div(twelve) }
func (YearlyConverter) Annual(a decimal.Decimal) decimal.Decimal  { return a }

// WeeklyConverter uses 4.33 weeks per month and 52 weeks per year.
type WeeklyConverter struct{}

func (WeeklyConverter) Monthly(a decimal.Decimal) decimal.Decimal { return a.Mul(weeksPerMonth) }
func (WeeklyConverter) Annual(a decimal.Decimal) decimal.Decimal  { return a.Mul(fiftyTwo) }

type QuarterlyConverter struct{}

func (QuarterlyConverter) Monthly(a decimal.Decimal) decimal.Decimal { return a.Div(three) }
func (QuarterlyConverter) Annual(a decimal.Decimal) decimal.Decimal  { return a.Mul(four) }

// DailyConverter uses 30 days per month and 365 days per year.
type DailyConverter struct{}

func (DailyConverter) Monthly(a decimal.Decimal) decimal.Decimal { return a.Mul(thirty) }
func (DailyConverter) Annual(a decimal.Decimal) decimal.Decimal  { return a.Mul(daysPerYear) }

// OneTimeConverter contributes nothing to recurring figures. One-time
// amounts are tracked separately by ComputeTotals.
type OneTimeConverter struct{}

func (OneTimeConverter) Monthly(decimal.Decimal) decimal.Decimal { return decimal.Zero }
func (OneTimeConverter) Annual(decimal.Decimal) decimal.Decimal  { return decimal.Zero }

var (
	convertersMu sync.RWMutex
	converters   = map[core.BillingCycle]CycleConverter{
		core.CycleMonthly:   MonthlyConverter{},
		core.CycleYearly:    YearlyConverter{},
		core.CycleWeekly:    WeeklyConverter{},
		core.CycleQuarterly: QuarterlyConverter{},
		core.CycleDaily:     DailyConverter{},
		core.CycleOneTime:   OneTimeConverter{},
	}
)

// GetConverter returns the converter registered for cycle.
func GetConverter(cycle core.BillingCycle) (CycleConverter, error) {
	convertersMu.RLock()
	defer convertersMu.RUnlock()
	c, ok := converters[cycle]
	if !ok {
		return nil, fmt.Errorf("unknown billing cycle: %s", cycle)
	}
	return c, nil
}

// RegisterConverter adds or replaces the converter for a cycle.
func RegisterConverter(cycle core.BillingCycle, c CycleConverter) {
	convertersMu.Lock()
	defer convertersMu.Unlock()
	converters[cycle] = c
}

// MonthlyEquivalent returns the monthly cost of c on its own cycle.
// Unknown cycles are worth zero. Status is not considered.
func MonthlyEquivalent(c core.RecurringCharge) decimal.Decimal {
	conv, err := GetConverter(c.Cycle)
	if err != nil {
		return decimal.Zero
	}
	return conv.Monthly(c.Amount)
}

// AnnualEquivalent returns the yearly cost of c on its own cycle.
func AnnualEquivalent(c core.RecurringCharge) decimal.Decimal {
	conv, err := GetConverter(c.Cycle)
	if err != nil {
		return decimal.Zero
	}
	return conv.Annual(c.Amount)
}
