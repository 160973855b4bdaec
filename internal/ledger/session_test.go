package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ledger/internal/core"
)

var fixedNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

func testOpts() SessionOptions {
	return SessionOptions{Now: func() time.Time { return fixedNow }, Location: time.UTC}
}

func mustSet(t *testing.T, s *EditSession, kv ...string) {
	t.Helper()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := s.SetField(kv[i], kv[i+1]); err != nil {
			t.Fatalf("set %s: %v", kv[i], err)
		}
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	s := StartCreate(newFakeStore(), testOpts())
	if s.Mode() != ModeCreate {
		t.Fatalf("expected create mode")
	}
	if got := s.Fields()[FieldType]; got != "expense" {
		t.Fatalf("expected default type expense, got %q", got)
	}
}

func TestCommitCreate(t *testing.T) {
	fs := newFakeStore()
	s := StartCreate(fs, testOpts())
	mustSet(t, s, FieldAmount, "12,50", FieldCategory, "food", FieldNote, " lunch ")

	id, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if id == "" || !s.Closed() {
		t.Fatalf("expected id and closed session, id=%q closed=%v", id, s.Closed())
	}
	got := fs.inserts[0]
	if got.Amount.String() != "12.5" || got.Category != core.Food || got.Type != core.Expense || got.Note != "lunch" {
		t.Fatalf("unexpected fields %+v", got)
	}
	if !got.Date.Equal(fixedNow) {
		t.Fatalf("empty date must default to now, got %v", got.Date)
	}

	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.SetField(FieldAmount, "1"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestCommitValidationLeavesSessionOpen(t *testing.T) {
	cases := []struct {
		name  string
		kv    []string
		field string
	}{
		{"non numeric amount", []string{FieldAmount, "abc", FieldCategory, "Food"}, FieldAmount},
		{"negative amount", []string{FieldAmount, "-3", FieldCategory, "Food"}, FieldAmount},
		{"missing amount", []string{FieldCategory, "Food"}, FieldAmount},
		{"missing category", []string{FieldAmount, "3"}, FieldCategory},
		{"unknown category", []string{FieldAmount, "3", FieldCategory, "Groceries"}, FieldCategory},
		{"bad type", []string{FieldAmount, "3", FieldCategory, "Food", FieldType, "gift"}, FieldType},
		{"bad date", []string{FieldAmount, "3", FieldCategory, "Food", FieldDate, "17/05/2024"}, FieldDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFakeStore()
			s := StartCreate(fs, testOpts())
			mustSet(t, s, tc.kv...)
			_, err := s.Commit(context.Background())
			var ve *core.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
			if fs.writes() != 0 {
				t.Fatalf("store must not be called on validation failure")
			}
			if s.Closed() {
				t.Fatalf("session must stay open")
			}
		})
	}
}

func TestCommitZeroAmountAllowed(t *testing.T) {
	fs := newFakeStore()
	s := StartCreate(fs, testOpts())
	mustSet(t, s, FieldAmount, "0", FieldCategory, "Other")
	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatalf("zero amount must commit, got %v", err)
	}
}

func TestCommitLongNote(t *testing.T) {
	fs := newFakeStore()
	s := StartCreate(fs, testOpts())
	note := strings.Repeat("n", 501)
	mustSet(t, s, FieldAmount, "4", FieldCategory, "Other", FieldNote, note)
	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatalf("long note must commit, got %v", err)
	}
	if got := fs.inserts[0].Note; got != note {
		t.Fatalf("note changed on the way to the store: %d chars", len(got))
	}
}

func TestCommitDateLayouts(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-06":                time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		"2024-01-06T14:05":          time.Date(2024, 1, 6, 14, 5, 0, 0, time.UTC),
		"2024-01-06T14:05:00+02:00": time.Date(2024, 1, 6, 12, 5, 0, 0, time.UTC),
	}
	for in, want := range cases {
		fs := newFakeStore()
		s := StartCreate(fs, testOpts())
		mustSet(t, s, FieldAmount, "1", FieldCategory, "Food", FieldDate, in)
		if _, err := s.Commit(context.Background()); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if !fs.inserts[0].Date.Equal(want) {
			t.Fatalf("%s: got %v, want %v", in, fs.inserts[0].Date, want)
		}
	}
}

func TestCommitStoreErrorLeavesSessionOpen(t *testing.T) {
	fs := newFakeStore()
	fs.writeErr = core.Unavailable("insert", errors.New("connection reset"))
	s := StartCreate(fs, testOpts())
	mustSet(t, s, FieldAmount, "5", FieldCategory, "Bills")

	_, err := s.Commit(context.Background())
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if s.Closed() {
		t.Fatalf("session must stay open after a store failure")
	}

	fs.writeErr = nil
	if _, err := s.Commit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(fs.inserts) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(fs.inserts))
	}
}

func TestCommitEdit(t *testing.T) {
	fs := newFakeStore()
	seed := tx("tx-9", 40, core.Expense, core.Food, "2024-01-06")
	fs.records[seed.ID] = seed

	s := StartEdit(fs, seed, testOpts())
	if s.Mode() != ModeEdit || s.TargetID() != "tx-9" {
		t.Fatalf("unexpected session %v %q", s.Mode(), s.TargetID())
	}
	f := s.Fields()
	if f[FieldAmount] != "40" || f[FieldCategory] != "Food" || f[FieldType] != "expense" {
		t.Fatalf("seed not loaded: %v", f)
	}
	mustSet(t, s, FieldAmount, "42")
	id, err := s.Commit(context.Background())
	if err != nil || id != "tx-9" {
		t.Fatalf("commit edit: id=%q err=%v", id, err)
	}
	upd, ok := fs.updates["tx-9"]
	if !ok || !upd.Amount.Equal(dec(42)) || !upd.Date.Equal(seed.Date) {
		t.Fatalf("unexpected update %+v", upd)
	}
	if len(fs.inserts) != 0 {
		t.Fatalf("edit must not insert")
	}
}

func TestSetFieldUnknown(t *testing.T) {
	s := StartCreate(newFakeStore(), testOpts())
	if err := s.SetField("colour", "red"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	fs := newFakeStore()
	s := StartCreate(fs, testOpts())
	mustSet(t, s, FieldAmount, "5", FieldCategory, "Bills")
	s.Cancel()
	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if fs.writes() != 0 {
		t.Fatalf("cancel must not write")
	}
}
