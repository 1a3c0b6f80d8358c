package services

import (
	"context"
	"errors"
	"sync"

	"subtrack/internal/core"
	"subtrack/internal/ports"
)

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	mu      sync.Mutex
	charges []core.RawCharge
	err     error
	filters []ports.ChargeFilter
	closed  bool
}

func (f *fakeStore) ListCharges(_ context.Context, filter ports.ChargeFilter) ([]core.RawCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	var out []core.RawCharge
	for _, c := range f.charges {
		created, _ := core.ParseTimestamp(c.CreatedAt)
		if filter.Matches(created, c.Status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCharge(_ context.Context, id int64) (core.RawCharge, error) {
	for _, c := range f.charges {
		if c.ID == id {
			return c, nil
		}
	}
	return core.RawCharge{}, ports.ErrNotFound
}

func (f *fakeStore) CountCharges(context.Context) (int64, error) {
	return int64(len(f.charges)), f.err
}

func (f *fakeStore) CreateCharge(_ context.Context, in core.ChargeInput) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if err := in.Validate(); err != nil {
		return 0, err
	}
	id := int64(len(f.charges) + 1)
	f.charges = append(f.charges, core.RawCharge{ID: id, Name: in.Name})
	return id, nil
}

func (f *fakeStore) UpdateCharge(_ context.Context, id int64, _ core.ChargeInput) error {
	if f.err != nil {
		return f.err
	}
	if _, err := f.GetCharge(context.Background(), id); err != nil {
		return err
	}
	return nil
}

func (f *fakeStore) DeleteCharge(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if _, err := f.GetCharge(context.Background(), id); err != nil {
		return err
	}
	return nil
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

type publishedEvent struct {
	id int64
	op string
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []publishedEvent
	exports []string
	err     error
}

func (p *fakePublisher) PublishChargeChanged(_ context.Context, id int64, op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{id: id, op: op})
	return nil
}

func (p *fakePublisher) PublishReportExport(_ context.Context, requestID string, _ core.Window) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.exports = append(p.exports, requestID)
	return nil
}
