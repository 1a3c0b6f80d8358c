package http

import (
	"net/http"

	"github.com/google/uuid"

	"subtrack/internal/core"
	applog "subtrack/internal/log"
)

// reportEnvelope wraps partial report results with their resolved window.
type reportEnvelope struct {
	Data     any         `json:"data"`
	Window   core.Window `json:"window"`
	Degraded bool        `json:"degraded,omitempty"`
}

// windowOrFail parses the window parameters, writing a 400 on failure.
func (s *Server) windowOrFail(w http.ResponseWriter, r *http.Request) (core.Window, bool) {
	win, err := ParseWindow(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return core.Window{}, false
	}
	return win, true
}

func (s *Server) writeReport(w http.ResponseWriter, win core.Window, data any, degraded bool) {
	NewJSONResponse().
		Degraded(degraded).
		Data(reportEnvelope{
			Data:     data,
			Window:   s.reports.Normalizer().Window(win),
			Degraded: degraded,
		}).
		Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowOrFail(w, r)
	if !ok {
		return
	}
	report := s.reports.Dashboard(r.Context(), win)
	NewJSONResponse().Degraded(report.Degraded).Data(report).Write(w)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowOrFail(w, r)
	if !ok {
		return
	}
	totals, degraded := s.reports.Totals(r.Context(), win)
	s.writeReport(w, win, totals, degraded)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowOrFail(w, r)
	if !ok {
		return
	}
	mode, err := ParseMode(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	buckets, degraded := s.reports.Trend(r.Context(), win, mode)
	s.writeReport(w, win, map[string]any{"mode": mode, "buckets": buckets}, degraded)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowOrFail(w, r)
	if !ok {
		return
	}
	n, err := ParseTopN(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	top, degraded := s.reports.Top(r.Context(), win, n)
	s.writeReport(w, win, top, degraded)
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowOrFail(w, r)
	if !ok {
		return
	}
	series, degraded := s.reports.Currencies(r.Context(), win)
	s.writeReport(w, win, series, degraded)
}

func (s *Server) handleBreakdowns(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowOrFail(w, r)
	if !ok {
		return
	}
	b, degraded := s.reports.Breakdowns(r.Context(), win)
	s.writeReport(w, win, b, degraded)
}

// handleExport queues a report export for the worker and answers 202.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	win, ok := s.windowOrFail(w, r)
	if !ok {
		return
	}
	if s.events == nil {
		ErrorResponse(http.StatusServiceUnavailable, "report export is not configured").Write(w)
		return
	}

	requestID := uuid.NewString()
	if err := s.events.PublishReportExport(r.Context(), requestID, win); err != nil {
		s.log.LogError(r.Context(), "Failed to queue report export", err, applog.ComponentAMQP, applog.OpExport,
			applog.NewFields().WithRequestID(requestID))
		ErrorResponse(http.StatusServiceUnavailable, "report export queue unavailable").Write(w)
		return
	}

	NewJSONResponse().
		Status(http.StatusAccepted).
		Data(map[string]any{
			"request_id": requestID,
			"window":     s.reports.Normalizer().Window(win),
		}).
		Write(w)
}
