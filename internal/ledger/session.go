package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/store"
)

// Working field names accepted by EditSession.SetField.
const (
	FieldAmount   = "amount"
	FieldCategory = "category"
	FieldType     = "type"
	FieldNote     = "note"
	FieldDate     = "date"
)

var fieldNames = []string{FieldAmount, FieldCategory, FieldType, FieldNote, FieldDate}

var ErrSessionClosed = errors.New("edit session closed")

// Accepted layouts for the date field, tried in order.
var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04", time.RFC3339}

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// SessionOptions configures the clock and time zone used when committing.
type SessionOptions struct {
	Now      func() time.Time
	Location *time.Location
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// EditSession collects string input for one transaction and commits it
// to the store once. Validation failures and store errors leave the
// session open so the caller can correct and retry.
type EditSession struct {
	writer store.Writer
	opts   SessionOptions
	mode   Mode
	target string

	mu     sync.Mutex
	fields map[string]string
	closed bool
}

// StartCreate opens a session for a new record. The type defaults to
// expense.
func StartCreate(w store.Writer, opts SessionOptions) *EditSession {
	s := newSession(w, opts, ModeCreate, "")
	s.fields[FieldType] = string(core.Expense)
	return s
}

// StartEdit opens a session pre-filled from seed that updates seed.ID.
func StartEdit(w store.Writer, seed core.Transaction, opts SessionOptions) *EditSession {
	s := newSession(w, opts, ModeEdit, seed.ID)
	s.fields[FieldAmount] = seed.Amount.String()
	s.fields[FieldCategory] = string(seed.Category)
	s.fields[FieldType] = string(seed.Type)
	s.fields[FieldNote] = seed.Note
	if !seed.Date.IsZero() {
		s.fields[FieldDate] = seed.Date.In(s.opts.Location).Format(time.RFC3339)
	}
	return s
}

func newSession(w store.Writer, opts SessionOptions, mode Mode, target string) *EditSession {
	s := &EditSession{
		writer: w,
		opts:   opts.withDefaults(),
		mode:   mode,
		target: target,
		fields: make(map[string]string, len(fieldNames)),
	}
	for _, name := range fieldNames {
		s.fields[name] = ""
	}
	return s
}

func (s *EditSession) Mode() Mode       { return s.mode }
func (s *EditSession) TargetID() string { return s.target }

func (s *EditSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetField updates one working field.
func (s *EditSession) SetField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.fields[name]; !ok {
		return &core.ValidationError{Field: name, Reason: "unknown field"}
	}
	s.fields[name] = value
	return nil
}

// Fields returns a copy of the working fields.
func (s *EditSession) Fields() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Commit validates the working fields and writes them. It returns the id
// of the created or updated record and closes the session on success.
func (s *EditSession) Commit(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}

	fields, err := s.parse()
	if err != nil {
		return "", err
	}

	id := s.target
	switch s.mode {
	case ModeCreate:
		id, err = s.writer.Insert(ctx, fields)
		if err != nil {
			return "", fmt.Errorf("insert transaction: %w", err)
		}
	case ModeEdit:
		if err := s.writer.Update(ctx, s.target, fields); err != nil {
			return "", fmt.Errorf("update transaction %s: %w", s.target, err)
		}
	}
	s.closed = true
	return id, nil
}

// Cancel closes the session without writing.
func (s *EditSession) Cancel() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *EditSession) parse() (core.TransactionFields, error) {
	var out core.TransactionFields

	raw := strings.TrimSpace(s.fields[FieldAmount])
	if raw == "" {
		return out, &core.ValidationError{Field: FieldAmount, Reason: "missing value"}
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return out, &core.ValidationError{Field: FieldAmount, Reason: fmt.Sprintf("%q is not a non-negative number", raw)}
	}
	out.Amount = amount

	if strings.TrimSpace(s.fields[FieldCategory]) == "" {
		return out, &core.ValidationError{Field: FieldCategory, Reason: "missing value"}
	}
	if out.Category, err = core.ParseCategory(s.fields[FieldCategory]); err != nil {
		return out, &core.ValidationError{Field: FieldCategory, Reason: err.Error()}
	}
	if out.Type, err = core.ParseTxType(s.fields[FieldType]); err != nil {
		return out, &core.ValidationError{Field: FieldType, Reason: err.Error()}
	}

	out.Note = strings.TrimSpace(s.fields[FieldNote])
	if out.Date, err = s.parseDate(s.fields[FieldDate]); err != nil {
		return out, err
	}

	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *EditSession) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.opts.Now().In(s.opts.Location), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.opts.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &core.ValidationError{Field: FieldDate, Reason: fmt.Sprintf("%q is not a date", raw)}
}
