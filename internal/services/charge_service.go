package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/ports"
)

const (
	announceQueueSize = 64
	announceTimeout   = 5 * time.Second
)

type announcement struct {
	ctx context.Context
	id  int64
	op  string
}

// ChargeService writes charges to the store and announces each change to
// the worker. The store write is authoritative; announcements are queued
// and sent in order by a background sender, so a slow broker never holds
// up the request. A failed or dropped announcement is only logged.
type ChargeService struct {
	store  ports.ChargeStore
	events ports.EventPublisher

	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
	queue   chan announcement
	sent    chan struct{}
	once    sync.Once
}

func NewChargeService(store ports.ChargeStore, events ports.EventPublisher) *ChargeService {
	s := &ChargeService{
		store:   store,
		events:  events,
		timeout: announceTimeout,
	}
	if events != nil {
		s.queue = make(chan announcement, announceQueueSize)
		s.sent = make(chan struct{})
		go s.sendLoop()
	}
	return s
}

// ListCharges implements ports.ChargeLister
func (s *ChargeService) ListCharges(ctx context.Context, f ports.ChargeFilter) ([]core.RawCharge, error) {
	return s.store.ListCharges(ctx, f)
}

func (s *ChargeService) GetCharge(ctx context.Context, id int64) (core.RawCharge, error) {
	return s.store.GetCharge(ctx, id)
}

func (s *ChargeService) CountCharges(ctx context.Context) (int64, error) {
	return s.store.CountCharges(ctx)
}

func (s *ChargeService) CreateCharge(ctx context.Context, in core.ChargeInput) (int64, error) {
	id, err := s.store.CreateCharge(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("save charge: %w", err)
	}
	s.announce(ctx, id, ports.OpCreated)
	return id, nil
}

func (s *ChargeService) UpdateCharge(ctx context.Context, id int64, in core.ChargeInput) error {
	if err := s.store.UpdateCharge(ctx, id, in); err != nil {
		return fmt.Errorf("update charge: %w", err)
	}
	s.announce(ctx, id, ports.OpUpdated)
	return nil
}

func (s *ChargeService) DeleteCharge(ctx context.Context, id int64) error {
	if err := s.store.DeleteCharge(ctx, id); err != nil {
		return fmt.Errorf("delete charge: %w", err)
	}
	s.announce(ctx, id, ports.OpDeleted)
	return nil
}

func (s *ChargeService) announce(ctx context.Context, id int64, op string) {
	if s.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping charge event", "id", id, "operation", op)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		slog.WarnContext(ctx, "Charge service closed, skipping charge event", "id", id, "operation", op)
		return
	}
	select {
	case s.queue <- announcement{ctx: context.WithoutCancel(ctx), id: id, op: op}:
	default:
		slog.WarnContext(ctx, "Charge event queue full, dropping event", "id", id, "operation", op)
	}
}

func (s *ChargeService) sendLoop() {
	defer close(s.sent)
	for a := range s.queue {
		ctx, cancel := context.WithTimeout(a.ctx, s.timeout)
		if err := s.events.PublishChargeChanged(ctx, a.id, a.op); err != nil {
			slog.ErrorContext(ctx, "Failed to publish charge event", "id", a.id, "operation", a.op, "error", err)
		}
		cancel()
	}
}

// drain stops accepting announcements and waits for queued ones to be sent.
func (s *ChargeService) drain() {
	if s.queue == nil {
		return
	}
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	<-s.sent
}

// Close flushes pending announcements, then releases the store and
// publisher when they hold resources.
func (s *ChargeService) Close() error {
	s.drain()

	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.events.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close charge service: %w", errors.Join(errs...))
	}
	return nil
}
