// Package postgres is a record store on PostgreSQL. Writes announce
// themselves with NOTIFY so every process subscribed to the same user
// re-queries, including this one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// Channel is the NOTIFY channel carrying the id of the user whose records
// changed.
const Channel = "ledger_changes"

type Options struct {
	Profile  core.Profile
	Location *time.Location
	Logger   *log.Logger
}

type Storage struct {
	db     *pgxpool.Pool
	userID string
	loc    *time.Location
	hub    *store.Hub
	logger *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

var _ store.Store = (*Storage)(nil)

// Open migrates the schema, connects the pool and starts the listener.
func Open(ctx context.Context, url string, opts Options) (*Storage, error) {
	if opts.Profile.UserID == "" {
		return nil, errors.New("postgres storage: user id is required")
	}
	if err := Migrate(ctx, url); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s, err := NewStorage(ctx, pool, opts)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStorage wraps an existing, migrated pool. On success the Storage
// owns pool and closes it in Close.
func NewStorage(ctx context.Context, pool *pgxpool.Pool, opts Options) (*Storage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Storage{
		db:     pool,
		userID: opts.Profile.UserID,
		loc:    loc,
		logger: logger.WithComponent(log.ComponentStorage),
		done:   make(chan struct{}),
	}
	s.hub = store.NewHub(s.query, logger)

	if _, err := pool.Exec(ctx, `
		INSERT INTO profiles (user_id, display_name, email) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), profiles.display_name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), profiles.email)`,
		opts.Profile.UserID, opts.Profile.DisplayName, opts.Profile.Email); err != nil {
		return nil, core.Unavailable("upsert profile", err)
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.listen(listenCtx)
	return s, nil
}

// newListenBackoff paces listener reconnects: 1s doubling up to 30s.
func newListenBackoff() retry.Backoff {
	return retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
}

// listen holds one pooled connection in LISTEN and kicks the hub for
// notifications about this user. It reconnects after failures; the delay
// starts over once a connection got as far as LISTEN.
func (s *Storage) listen(ctx context.Context) {
	defer close(s.done)
	backoff := newListenBackoff()
	for {
		listening := false
		err := s.listenOnce(ctx, func() { listening = true })
		if ctx.Err() != nil {
			return
		}
		if listening {
			backoff = newListenBackoff()
		}
		delay, _ := backoff.Next()
		s.logger.Warn("change listener stopped, retrying",
			log.FieldOperation, log.OpSubscribe,
			log.FieldError, err,
			"retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Storage) listenOnce(ctx context.Context, onListening func()) error {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	onListening()
	// Writes may have been missed while not listening.
	s.hub.Notify()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if n.Payload == s.userID {
			s.hub.Notify()
		}
	}
}

func (s *Storage) Subscribe(ctx context.Context, scope core.Scope, fn store.SnapshotFunc) (store.Subscription, error) {
	return s.hub.Subscribe(ctx, scope, fn)
}

func (s *Storage) query(ctx context.Context, scope core.Scope) ([]core.Transaction, error) {
	from, until := scope.Bounds()
	rows, err := s.db.Query(ctx, `
		SELECT id::text, amount::text, category, type, note, date
		FROM transactions
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR date >= $2)
		  AND ($3::timestamptz IS NULL OR date < $3)
		ORDER BY date DESC`,
		s.userID, nullTime(from), nullTime(until))
	if err != nil {
		return nil, core.Unavailable("query transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := s.scan(rows)
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

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Storage) scan(row pgx.Row) (core.Transaction, error) {
	var (
		t                     core.Transaction
		amount, category, typ string
	)
	if err := row.Scan(&t.ID, &amount, &category, &typ, &t.Note, &t.Date); err != nil {
		return t, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("row %s: amount %q: %w", t.ID, amount, err)
	}
	t.Category = core.Category(category)
	t.Type = core.TxType(typ)
	t.Date = t.Date.In(s.loc)
	return t, nil
}

// write runs stmt and the change notification in one transaction so
// listeners never see a notification before the data.
func (s *Storage) write(ctx context.Context, op, id, stmt string, args ...any) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return core.Unavailable(op, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, stmt, args...)
	if err != nil {
		return core.Unavailable(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, s.userID); err != nil {
		return core.Unavailable(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return core.Unavailable(op, err)
	}
	s.logger.InfoContext(ctx, "transaction written", log.FieldOperation, op, log.FieldTxID, id)
	return nil
}

func (s *Storage) Insert(ctx context.Context, f core.TransactionFields) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := s.write(ctx, store.OpInsert, id, `
		INSERT INTO transactions (id, user_id, amount, category, type, note, date)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)`,
		id, s.userID, f.Amount.String(), string(f.Category), string(f.Type), f.Note, f.Date)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) Update(ctx context.Context, id string, f core.TransactionFields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	return s.write(ctx, store.OpUpdate, id, `
		UPDATE transactions
		SET amount = $1::numeric, category = $2, type = $3, note = $4, date = $5, updated_at = now()
		WHERE id = $6 AND user_id = $7`,
		f.Amount.String(), string(f.Category), string(f.Type), f.Note, f.Date, id, s.userID)
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	return s.write(ctx, store.OpDelete, id,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, s.userID)
}

func (s *Storage) GetByID(ctx context.Context, id string) (core.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.Transaction{}, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
	}
	row := s.db.QueryRow(ctx, `
		SELECT id::text, amount::text, category, type, note, date
		FROM transactions WHERE id = $1 AND user_id = $2`, id, s.userID)
	t, err := s.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, core.Unavailable("get", err)
	}
	return t, nil
}

func (s *Storage) Profile(ctx context.Context) (core.Profile, error) {
	p := core.Profile{UserID: s.userID}
	err := s.db.QueryRow(ctx,
		`SELECT display_name, email FROM profiles WHERE user_id = $1`, s.userID).
		Scan(&p.DisplayName, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return core.Profile{}, core.Unavailable("profile", err)
	}
	return p, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return core.Unavailable("ping", err)
	}
	return nil
}

func (s *Storage) Close() error {
	s.hub.Close()
	s.cancel()
	<-s.done
	s.db.Close()
	return nil
}
