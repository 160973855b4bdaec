package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"

	_ "modernc.org/sqlite"
)

// Dates are stored as fixed-width UTC text so string order is time order.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Options configures a SQLiteRepository.
type Options struct {
	// Profile names the owner; rows are scoped to Profile.UserID.
	Profile  core.Profile
	Location *time.Location
	// Publisher, if set, receives every committed write.
	Publisher store.ChangePublisher
	Logger    *log.Logger
}

// SQLiteRepository is a record store backed by a local SQLite file.
type SQLiteRepository struct {
	db        *sql.DB
	userID    string
	loc       *time.Location
	publisher store.ChangePublisher
	hub       *store.Hub
	logger    *log.Logger
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(ctx context.Context, dbPath string, opts Options) (*SQLiteRepository, error) {
	if opts.Profile.UserID == "" {
		return nil, errors.New("sqlite repository: user id is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)
	if _, err := upgradeSchema(dbPath, logger); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	r := &SQLiteRepository{
		db:        db,
		userID:    opts.Profile.UserID,
		loc:       loc,
		publisher: opts.Publisher,
		logger:    logger,
	}
	r.hub = store.NewHub(r.query, logger)

	if err := r.upsertProfile(ctx, opts.Profile); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) upsertProfile(ctx context.Context, p core.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, email) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name = '' THEN profiles.display_name ELSE excluded.display_name END,
			email = CASE WHEN excluded.email = '' THEN profiles.email ELSE excluded.email END`,
		p.UserID, p.DisplayName, p.Email)
	if err != nil {
		return core.Unavailable("upsert profile", err)
	}
	return nil
}

func (r *SQLiteRepository) Subscribe(ctx context.Context, scope core.Scope, fn store.SnapshotFunc) (store.Subscription, error) {
	return r.hub.Subscribe(ctx, scope, fn)
}

// Refresh re-runs every live query. The change bus calls it when another
// process wrote to the same database.
func (r *SQLiteRepository) Refresh() {
	r.hub.Notify()
}

func (r *SQLiteRepository) query(ctx context.Context, scope core.Scope) ([]core.Transaction, error) {
	from, until := scope.Bounds()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, category, type, note, date
		FROM transactions
		WHERE user_id = ?
		  AND (? = '' OR date >= ?)
		  AND (? = '' OR date < ?)
		ORDER BY date DESC`,
		r.userID,
		formatBound(from), formatBound(from),
		formatBound(until), formatBound(until))
	if err != nil {
		return nil, core.Unavailable("query transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, core.Unavailable("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable("query transactions", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scan(s scanner) (core.Transaction, error) {
	var (
		t                     core.Transaction
		amount, category, typ string
		date                  string
	)
	if err := s.Scan(&t.ID, &amount, &category, &typ, &t.Note, &date); err != nil {
		return t, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("row %s: amount %q: %w", t.ID, amount, err)
	}
	d, err := time.Parse(dbTimeLayout, date)
	if err != nil {
		return t, fmt.Errorf("row %s: date %q: %w", t.ID, date, err)
	}
	t.Date = d.In(r.loc)
	t.Category = core.Category(category)
	t.Type = core.TxType(typ)
	return t, nil
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dbTimeLayout)
}

func (r *SQLiteRepository) Insert(ctx context.Context, f core.TransactionFields) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := time.Now().UTC().Format(dbTimeLayout)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, category, type, note, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.userID, f.Amount.String(), string(f.Category), string(f.Type), f.Note,
		f.Date.UTC().Format(dbTimeLayout), now, now)
	if err != nil {
		return "", core.Unavailable("insert", err)
	}
	r.committed(ctx, store.OpInsert, id, f)
	return id, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, f core.TransactionFields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount = ?, category = ?, type = ?, note = ?, date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		f.Amount.String(), string(f.Category), string(f.Type), f.Note,
		f.Date.UTC().Format(dbTimeLayout), time.Now().UTC().Format(dbTimeLayout),
		id, r.userID)
	if err := affectedOne("update", id, res, err); err != nil {
		return err
	}
	r.committed(ctx, store.OpUpdate, id, f)
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, r.userID)
	if err := affectedOne("delete", id, res, err); err != nil {
		return err
	}
	r.committed(ctx, store.OpDelete, id, core.TransactionFields{})
	return nil
}

func affectedOne(op, id string, res sql.Result, err error) error {
	if err != nil {
		return core.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Unavailable(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) committed(ctx context.Context, op, id string, f core.TransactionFields) {
	r.hub.Notify()
	r.logger.InfoContext(ctx, "transaction written",
		log.NewFields().
			WithOperation(op).
			WithTransaction(id, f.Amount, string(f.Category), string(f.Type)).
			ToSlice()...)
	if r.publisher == nil {
		return
	}
	// The local write already succeeded; a failed broadcast only delays
	// other processes until their next write.
	if err := r.publisher.PublishChange(ctx, store.Change{UserID: r.userID, Op: op, ID: id}); err != nil {
		r.logger.WarnContext(ctx, "change broadcast failed",
			log.FieldOperation, log.OpPublish,
			log.FieldTxID, id,
			log.FieldError, err)
	}
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, amount, category, type, note, date
		FROM transactions WHERE id = ? AND user_id = ?`, id, r.userID)
	t, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, core.Unavailable("get", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Profile(ctx context.Context) (core.Profile, error) {
	p := core.Profile{UserID: r.userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT display_name, email FROM profiles WHERE user_id = ?`, r.userID).
		Scan(&p.DisplayName, &p.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return core.Profile{}, core.Unavailable("profile", err)
	}
	return p, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.Unavailable("ping", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	r.hub.Close()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
