package store

import "context"

// Change operations carried by a Change.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change describes a committed write, for fan-out to other processes
// sharing the same backing database.
type Change struct {
	UserID string
	Op     string
	ID     string
}

// ChangePublisher broadcasts committed writes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c Change) error
}
