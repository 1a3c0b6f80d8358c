// Package ports declares the outbound interfaces the services depend on.
package ports

import (
	"context"
	"errors"
	"time"

	"subtrack/internal/core"
)

// ErrNotFound is returned by stores when a charge id does not exist.
var ErrNotFound = errors.New("charge not found")

// Change operations carried by charge events.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

type (
	// ChargeFilter narrows a listing. Zero values mean no bound.
	ChargeFilter struct {
		CreatedFrom *time.Time
		CreatedTo   *time.Time
		Status      string
	}

	// ChargeLister returns charge rows for the normalizer.
	ChargeLister interface {
		ListCharges(ctx context.Context, f ChargeFilter) ([]core.RawCharge, error)
	}

	ChargeWriter interface {
		CreateCharge(ctx context.Context, in core.ChargeInput) (int64, error)
		UpdateCharge(ctx context.Context, id int64, in core.ChargeInput) error
		DeleteCharge(ctx context.Context, id int64) error
	}

	ChargeReader interface {
		GetCharge(ctx context.Context, id int64) (core.RawCharge, error)
		CountCharges(ctx context.Context) (int64, error)
	}

	// ChargeStore is everything a storage backend provides.
	ChargeStore interface {
		ChargeLister
		ChargeWriter
		ChargeReader
	}

	// EventPublisher announces changes and export requests to workers.
	EventPublisher interface {
		PublishChargeChanged(ctx context.Context, id int64, operation string) error
		PublishReportExport(ctx context.Context, requestID string, w core.Window) error
	}

	// ReportExporter writes a finished report to an external destination.
	ReportExporter interface {
		ExportReport(ctx context.Context, r core.Report) error
	}
)

// Matches reports whether a charge created at created with status passes f.
// Charges without a creation date pass an end bound but never a start
// bound: they still count in totals, they just cannot be placed in time.
func (f ChargeFilter) Matches(created time.Time, status string) bool {
	if f.Status != "" && string(core.ParseStatus(status)) != string(core.ParseStatus(f.Status)) {
		return false
	}
	if created.IsZero() {
		return f.CreatedFrom == nil
	}
	if f.CreatedFrom != nil && created.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && created.After(*f.CreatedTo) {
		return false
	}
	return true
}
