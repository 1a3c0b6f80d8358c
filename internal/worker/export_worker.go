package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/core"
	applog "subtrack/internal/log"
	"subtrack/internal/ports"
	"subtrack/internal/services"
)

// ErrDegradedReport is returned when a report could not be built from the
// store. The message is requeued rather than exporting zeros.
var ErrDegradedReport = errors.New("report degraded: charge store unavailable")

// ExportWorker builds reports and pushes them to an exporter. It handles
// queue messages and scheduled trailing-window exports.
type ExportWorker struct {
	reports  *services.ReportService
	exporter ports.ReportExporter
}

var _ amqp.Handler = (*ExportWorker)(nil)

func NewExportWorker(reports *services.ReportService, exporter ports.ReportExporter) *ExportWorker {
	return &ExportWorker{
		reports:  reports,
		exporter: exporter,
	}
}

// HandleReportExport exports the report for the requested window.
func (w *ExportWorker) HandleReportExport(ctx context.Context, msg *amqp.ReportExportMessage) error {
	slog.InfoContext(ctx, "Processing report export message",
		"request_id", msg.RequestID,
		"from", msg.From,
		"to", msg.To)

	window, err := msg.Window()
	if err != nil {
		return fmt.Errorf("parse export window: %w", err)
	}
	return w.export(ctx, window, msg.RequestID)
}

// HandleChargeChanged refreshes the trailing report after a charge mutation.
func (w *ExportWorker) HandleChargeChanged(ctx context.Context, msg *amqp.ChargeChangedMessage) error {
	slog.InfoContext(ctx, "Processing charge change",
		"id", msg.ID,
		"operation", msg.Operation)
	return w.ExportTrailing(ctx)
}

// ExportTrailing exports the default trailing window.
func (w *ExportWorker) ExportTrailing(ctx context.Context) error {
	return w.export(ctx, core.Window{}, "")
}

func (w *ExportWorker) export(ctx context.Context, window core.Window, requestID string) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No report exporter configured, skipping export", "request_id", requestID)
		return nil
	}

	start := time.Now()
	report := w.reports.Dashboard(ctx, window)
	if report.Degraded {
		return ErrDegradedReport
	}

	if err := w.exporter.ExportReport(ctx, report); err != nil {
		slog.ErrorContext(ctx, "Failed to export report",
			"request_id", requestID,
			"error", err)
		return fmt.Errorf("export report: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentReport).InfoContext(ctx, "Successfully exported report",
		applog.FieldRequestID, requestID,
		applog.FieldWindowFrom, report.Window.From.Format(core.WindowLayout),
		applog.FieldWindowTo, report.Window.To.Format(core.WindowLayout),
		"subscriptions", report.Totals.TotalCount,
		"duration", time.Since(start))
	return nil
}
