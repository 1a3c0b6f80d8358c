// Package core holds the charge model shared by stores, the billing
// normalizer and the transport layers.
//
// Amounts are carried as decimal.Decimal so that summing many charges stays
// exact; conversion to float64 happens only when a value is presented.
package core

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a number or numeric string into a decimal.
// It returns false for nil, NaN, infinities and anything non-numeric.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0), true
	case uint32:
		return decimal.NewFromInt(int64(x)), true
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), true
	case json.Number:
		return ParseAmountString(x.String())
	case string:
		return ParseAmountString(x)
	case []byte:
		return ParseAmountString(string(x))
	}
	return decimal.Zero, false
}

// ParseAmountString accepts both dot (12.34) and comma (12,34) decimal
// separators. Mixed separators are rejected.
func ParseAmountString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			return decimal.Zero, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// MaxAmount is the largest amount a single charge may carry.
var MaxAmount = decimal.New(1, 9)

// InRange reports whether d is a usable charge amount: not negative and not
// above MaxAmount.
func InRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(MaxAmount)
}

// Round2 rounds half away from zero to two decimals for presentation.
// Values a float64 cannot hold come out as 0.
func Round2(d decimal.Decimal) float64 {
	f := d.Round(2).InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-8601 shapes stores hand out. Timestamps
// without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
