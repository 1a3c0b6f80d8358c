package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

// DefaultTopN is the number of charges kept by TopN when no size is given.
const DefaultTopN = 10

// Config holds the knobs of a Normalizer.
type Config struct {
	// DefaultCurrency labels charges stored without a currency.
	DefaultCurrency string
	// TopN bounds the top-charges ranking in reports.
	TopN int
	// Now is the clock used to resolve the default window.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults for a Normalizer.
func DefaultConfig() Config {
	return Config{
		DefaultCurrency: "USD",
		TopN:            DefaultTopN,
		Now:             time.Now,
	}
}

// Normalizer turns charge snapshots into reports. It keeps no state between
// calls and is safe for concurrent use.
type Normalizer struct {
	cfg Config
}

func NewNormalizer(cfg Config) *Normalizer {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.DefaultCurrency) == "" {
		cfg.DefaultCurrency = def.DefaultCurrency
	}
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Normalizer{cfg: cfg}
}

// Config returns the effective configuration.
func (n *Normalizer) Config() Config {
	return n.cfg
}

// recurringActive reports whether c takes part in recurring totals: active,
// not one-time and billed on a cycle with a registered converter.
func recurringActive(c core.RecurringCharge) (CycleConverter, bool) {
	if !c.IsActive() || c.Cycle == core.CycleOneTime {
		return nil, false
	}
	conv, err := GetConverter(c.Cycle)
	if err != nil {
		return nil, false
	}
	return conv, true
}

// ComputeTotals sums the scalar aggregates of charges. Recurring figures
// only include active charges; the one-time total includes every one-time
// charge whatever its status. No rounding happens here.
func ComputeTotals(charges []core.RecurringCharge) core.Totals {
	monthly := decimal.Zero
	yearly := decimal.Zero
	annual := decimal.Zero
	oneTime := decimal.Zero
	active := 0

	for _, c := range charges {
		if c.Cycle == core.CycleOneTime {
			oneTime = oneTime.Add(c.Amount)
			continue
		}
		conv, ok := recurringActive(c)
		if !ok {
			continue
		}
		active++
		monthly = monthly.Add(conv.Monthly(c.Amount))
		annual = annual.Add(conv.Annual(c.Amount))
		if c.Cycle == core.CycleYearly {
			yearly = yearly.Add(c.Amount)
		}
	}

	avg := decimal.Zero
	if active > 0 {
		avg = monthly.Div(decimal.NewFromInt(int64(active)))
	}

	return core.Totals{
		MonthlyEquivalent: monthly,
		YearlyActual:      yearly,
		AnnualRecurring:   annual,
		OneTime:           oneTime,
		AvgMonthlySpend:   avg,
		ActiveCount:       active,
		TotalCount:        len(charges),
	}
}
