package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleYearly    BillingCycle = "yearly"
	CycleWeekly    BillingCycle = "weekly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleDaily     BillingCycle = "daily"
	CycleOneTime   BillingCycle = "one-time"
)

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
)

type (
	// BillingCycle is the recurrence period of a charge. Values outside the
	// known set are carried verbatim and contribute nothing to totals.
	BillingCycle string

	// Status is the lifecycle state of a charge. Only active charges count
	// towards recurring totals.
	Status string

	// RawCharge is a charge row as handed over by a store, before any typing.
	// Amount may be a number or a numeric string.
	RawCharge struct {
		ID           int64  `json:"id" yaml:"id"`
		Name         string `json:"name" yaml:"name"`
		Amount       any    `json:"amount" yaml:"amount"`
		BillingCycle string `json:"billing_cycle" yaml:"billing_cycle"`
		Status       string `json:"status" yaml:"status"`
		Currency     string `json:"currency" yaml:"currency"`
		CreatedAt    string `json:"created_at" yaml:"created_at"`
	}

	// RecurringCharge is the typed read-only projection of a RawCharge.
	RecurringCharge struct {
		ID        int64
		Name      string
		Amount    decimal.Decimal
		Cycle     BillingCycle
		Status    Status
		Currency  string
		CreatedAt time.Time // zero when the source value could not be parsed
	}

	// ChargeInput is the write model accepted by stores.
	ChargeInput struct {
		Name         string
		Amount       string
		BillingCycle string
		Status       string
		Currency     string
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrInvalidAmount   = errors.New("invalid amount (must be positive and at most 1000000000)")
	ErrInvalidCycle    = errors.New("invalid billing cycle")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// ParseBillingCycle canonicalises a cycle string. Unknown values are
// returned trimmed but otherwise untouched.
func ParseBillingCycle(s string) BillingCycle {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "onetime", "one_time", "one time":
		return CycleOneTime
	case string(CycleMonthly), string(CycleYearly), string(CycleWeekly),
		string(CycleQuarterly), string(CycleDaily), string(CycleOneTime):
		return BillingCycle(v)
	}
	return BillingCycle(strings.TrimSpace(s))
}

// Known reports whether c is one of the supported cycles.
func (c BillingCycle) Known() bool {
	switch c {
	case CycleMonthly, CycleYearly, CycleWeekly, CycleQuarterly, CycleDaily, CycleOneTime:
		return true
	}
	return false
}

// Recurring reports whether c is a known cycle that repeats.
func (c BillingCycle) Recurring() bool {
	return c.Known() && c != CycleOneTime
}

// ParseStatus canonicalises a status string.
func ParseStatus(s string) Status {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "canceled":
		return StatusCancelled
	case string(StatusActive), string(StatusExpired), string(StatusCancelled), string(StatusPaused):
		return Status(v)
	}
	return Status(strings.TrimSpace(s))
}

func (s Status) Known() bool {
	switch s {
	case StatusActive, StatusExpired, StatusCancelled, StatusPaused:
		return true
	}
	return false
}

// Normalize converts a raw row into a RecurringCharge. It never fails:
// a malformed amount becomes zero and an unparseable date becomes the zero
// time.
func Normalize(raw RawCharge) RecurringCharge {
	amount, ok := ParseAmount(raw.Amount)
	if !ok || !InRange(amount) {
		amount = decimal.Zero
	}
	created, _ := ParseTimestamp(raw.CreatedAt)

	return RecurringCharge{
		ID:        raw.ID,
		Name:      strings.TrimSpace(raw.Name),
		Amount:    amount,
		Cycle:     ParseBillingCycle(raw.BillingCycle),
		Status:    ParseStatus(raw.Status),
		Currency:  strings.ToUpper(strings.TrimSpace(raw.Currency)),
		CreatedAt: created,
	}
}

// NormalizeAll applies Normalize to every row, preserving order.
func NormalizeAll(raws []RawCharge) []RecurringCharge {
	out := make([]RecurringCharge, len(raws))
	for i, r := range raws {
		out[i] = Normalize(r)
	}
	return out
}

func (c RecurringCharge) IsActive() bool {
	return c.Status == StatusActive
}

// ContributesRecurring reports whether the charge takes part in recurring
// totals: active and billed on a known repeating cycle.
func (c RecurringCharge) ContributesRecurring() bool {
	return c.IsActive() && c.Cycle.Recurring()
}

// CreatedBy reports whether the charge existed at t. Charges without a
// creation date never match.
func (c RecurringCharge) CreatedBy(t time.Time) bool {
	return !c.CreatedAt.IsZero() && !c.CreatedAt.After(t)
}

// Normalized returns a copy with canonical cycle, status and currency.
// An empty status defaults to active.
func (in ChargeInput) Normalized() ChargeInput {
	out := ChargeInput{
		Name:         strings.TrimSpace(in.Name),
		Amount:       strings.TrimSpace(in.Amount),
		BillingCycle: string(ParseBillingCycle(in.BillingCycle)),
		Status:       string(ParseStatus(in.Status)),
		Currency:     strings.ToUpper(strings.TrimSpace(in.Currency)),
	}
	if out.Status == "" {
		out.Status = string(StatusActive)
	}
	return out
}

func (in ChargeInput) Validate() error {
	n := in.Normalized()
	if n.Name == "" {
		return ErrEmptyName
	}
	if len(n.Name) > 200 {
		return ErrNameTooLong
	}
	amount, ok := ParseAmountString(n.Amount)
	if !ok || !amount.IsPositive() || !InRange(amount) {
		return ErrInvalidAmount
	}
	if !BillingCycle(n.BillingCycle).Known() {
		return ErrInvalidCycle
	}
	if !Status(n.Status).Known() {
		return ErrInvalidStatus
	}
	if n.Currency != "" && !isCurrencyCode(n.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
