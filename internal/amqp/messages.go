package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"subtrack/internal/core"
)

// MessageType tags every message on the queue so a single consumer can
// dispatch them.
type MessageType string

const (
	TypeReportExport  MessageType = "report.export"
	TypeChargeChanged MessageType = "charge.changed"
)

// ReportExportMessage asks the worker to build and export a report. Window
// bounds are months in YYYY-MM form; empty bounds mean the trailing year.
type ReportExportMessage struct {
	Type        MessageType `json:"type"`
	RequestID   string      `json:"request_id"`
	From        string      `json:"from,omitempty"`
	To          string      `json:"to,omitempty"`
	RequestedAt time.Time   `json:"requested_at"`
}

// ChargeChangedMessage carries only the charge id and the operation; the
// worker reads current data from the store.
type ChargeChangedMessage struct {
	Type      MessageType `json:"type"`
	ID        int64       `json:"id"`
	Operation string      `json:"operation"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewReportExportMessage(requestID string, w core.Window) *ReportExportMessage {
	msg := &ReportExportMessage{
		Type:        TypeReportExport,
		RequestID:   requestID,
		RequestedAt: time.Now(),
	}
	if !w.From.IsZero() {
		msg.From = w.From.Format(core.WindowLayout)
	}
	if !w.To.IsZero() {
		msg.To = w.To.Format(core.WindowLayout)
	}
	return msg
}

func NewChargeChangedMessage(id int64, operation string) *ChargeChangedMessage {
	return &ChargeChangedMessage{
		Type:      TypeChargeChanged,
		ID:        id,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// Window parses the requested bounds.
func (m *ReportExportMessage) Window() (core.Window, error) {
	var w core.Window
	if m.From != "" {
		t, err := time.Parse(core.WindowLayout, m.From)
		if err != nil {
			return core.Window{}, fmt.Errorf("parse from %q: %w", m.From, err)
		}
		w.From = t
	}
	if m.To != "" {
		t, err := time.Parse(core.WindowLayout, m.To)
		if err != nil {
			return core.Window{}, fmt.Errorf("parse to %q: %w", m.To, err)
		}
		w.To = t
	}
	return w, nil
}

func (m *ReportExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *ChargeChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes a queue body into *ReportExportMessage or
// *ChargeChangedMessage according to its type tag.
func ParseMessage(data []byte) (any, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message type: %w", err)
	}

	switch head.Type {
	case TypeReportExport:
		var msg ReportExportMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode report export: %w", err)
		}
		return &msg, nil
	case TypeChargeChanged:
		var msg ChargeChangedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode charge changed: %w", err)
		}
		return &msg, nil
	}
	return nil, fmt.Errorf("unknown message type %q", head.Type)
}
