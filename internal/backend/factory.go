package backend

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"ledger/internal/amqp"
	"ledger/internal/log"
	"ledger/internal/store"
	"ledger/internal/store/memory"
	"ledger/internal/store/postgres"
	"ledger/internal/storage"
	"ledger/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	logger := f.logger.WithComponent(log.ComponentBackend)

	// The change bus is optional; without it only this process sees its writes live.
	var client *amqp.Client
	if config.AMQPURL != "" {
		var err error
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, f.logger)
		if err != nil {
			logger.Warn("failed to initialize AMQP client, continuing without change bus", log.FieldError, err)
			client = nil
		} else {
			logger.Info("initialized AMQP client", "exchange", config.AMQPExchange, log.FieldOrigin, client.Origin())
		}
	}

	opts := storage.Options{
		Profile:  config.Profile,
		Location: config.Location,
		Logger:   f.logger,
	}
	if client != nil {
		opts.Publisher = client
	}
	repo, err := storage.NewSQLiteRepository(ctx, config.SQLiteDBPath, opts)
	if err != nil {
		if client != nil {
			client.Close()
		}
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	logger.Info("initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", client != nil)

	result := &BackendResult{Store: repo, Cleanup: repo.Close}
	if client != nil {
		result.Run = worker.NewSyncWorker(client, repo, config.Profile.UserID, f.logger).Run
		result.Cleanup = closeAll(repo.Close, client.Close)
	}
	return result, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	s, err := postgres.Open(ctx, config.DatabaseURL, postgres.Options{
		Profile:  config.Profile,
		Location: config.Location,
		Logger:   f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
	}
	f.logger.WithComponent(log.ComponentBackend).Info("initialized postgres backend", "channel", postgres.Channel)
	return &BackendResult{Store: s, Cleanup: s.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var s store.Store = memory.New(config.Profile, f.logger)
	f.logger.WithComponent(log.ComponentBackend).Info("initialized memory backend")
	return &BackendResult{Store: s, Cleanup: s.Close}, nil
}

// closeAll runs every closer in order and reports all failures.
func closeAll(closers ...func() error) func() error {
	return func() error {
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
		return err
	}
}
