package backend

import (
	"context"
	"fmt"
	"log/slog"

	"subtrack/internal/amqp"
	"subtrack/internal/ports"
	"subtrack/internal/services"
	"subtrack/internal/storage"
	"subtrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger

	// dialAMQP is swapped in tests
	dialAMQP func(url, exchange, queue string) (*amqp.Client, error)
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:   logger,
		dialAMQP: amqp.NewClient,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store ports.ChargeStore
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteStore(ctx, config)
	case MemoryBackend:
		store, err = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	events := f.createPublisher(config)
	charges := services.NewChargeService(store, events)

	return &BackendResult{
		Charges: charges,
		Events:  events,
		Cleanup: charges.Close,
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(ctx context.Context, config Config) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedFile != "" {
		if err := f.seedIfEmpty(ctx, repo, config.SeedFile); err != nil {
			_ = repo.Close()
			return nil, err
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

// seedIfEmpty imports the seed file into a database with no charges.
func (f *DefaultFactory) seedIfEmpty(ctx context.Context, repo *storage.SQLiteRepository, path string) error {
	count, err := repo.CountCharges(ctx)
	if err != nil {
		return fmt.Errorf("count charges: %w", err)
	}
	if count > 0 {
		f.logger.Debug("Database already populated, skipping seed", "charges", count)
		return nil
	}

	charges, err := memory.LoadSeed(path)
	if err != nil {
		return err
	}
	imported, err := repo.ImportCharges(ctx, charges)
	if err != nil {
		return fmt.Errorf("import seed charges: %w", err)
	}
	f.logger.Info("Imported seed charges", "path", path, "imported", imported, "total", len(charges))
	return nil
}

func (f *DefaultFactory) createMemoryStore(config Config) (*memory.Store, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return store, nil
}

// createPublisher returns nil (not a typed nil) when AMQP is off or down,
// so the charge service can detect the missing publisher.
func (f *DefaultFactory) createPublisher(config Config) ports.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
