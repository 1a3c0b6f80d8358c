package backend

import (
	"context"

	"subtrack/internal/ports"
	"subtrack/internal/services"
)

// CleanupFunc releases backend resources
type CleanupFunc func() error

// BackendResult contains the wired charge service, the optional event
// publisher and a cleanup function.
type BackendResult struct {
	Charges *services.ChargeService
	// Events is nil when AMQP is not configured or unreachable.
	Events  ports.EventPublisher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Seed data, imported into an empty SQLite database or loaded into memory
	SeedFile string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
