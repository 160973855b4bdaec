package backend

import (
	"context"
	"time"

	"ledger/internal/core"
	"ledger/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and the resources tied to it.
type BackendResult struct {
	Store store.Store
	// Run, if set, must run for the life of the store. It carries the
	// change bus consumer for the sqlite backend.
	Run     func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type     BackendType
	Profile  core.Profile
	Location *time.Location

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string

	// Postgres specific
	DatabaseURL string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
