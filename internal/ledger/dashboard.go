package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// Update is pushed to watchers whenever a derived view or the list changes.
type Update struct {
	Views       Views  `json:"views"`
	ListVersion uint64 `json:"listVersion"`
}

// Options configures a Dashboard.
type Options struct {
	Now      func() time.Time
	Location *time.Location
	Logger   *log.Logger
}

// Dashboard ties the chart subscription, the optional list subscription,
// the derived views and the write path together for one user.
//
// The transaction list is served from the chart cache unless a list range
// is set, in which case a second, separately scoped feed serves it.
type Dashboard struct {
	store   store.Store
	session SessionOptions
	logger  *log.Logger

	chart     *Feed
	rangeMu   sync.Mutex // serializes SetListRange
	mu        sync.RWMutex
	views     Views
	list      *Feed
	listScope *core.Scope
	listVer   uint64
	watchers  map[int]func(Update)
	nextWatch int
}

func NewDashboard(st store.Store, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	d := &Dashboard{
		store:    st,
		session:  SessionOptions{Now: opts.Now, Location: opts.Location}.withDefaults(),
		logger:   logger.WithComponent(log.ComponentLedger),
		views:    ComputeViews(nil, 0),
		watchers: make(map[int]func(Update)),
	}
	d.chart = NewFeed(st, NewCache(), d.onChartChange, logger)
	return d
}

// Start opens the chart subscription.
func (d *Dashboard) Start(ctx context.Context, chartScope core.Scope) error {
	return d.SetChartRange(ctx, chartScope)
}

// SetChartRange re-scopes the chart subscription. Views keep their current
// values until the new subscription delivers.
func (d *Dashboard) SetChartRange(ctx context.Context, scope core.Scope) error {
	if err := d.chart.Open(ctx, scope); err != nil {
		return fmt.Errorf("set chart range: %w", err)
	}
	d.logger.InfoContext(ctx, "chart range set",
		log.FieldScopeStart, scope.Start,
		log.FieldScopeEnd, scope.End)
	return nil
}

// ChartRange returns the chart subscription scope.
func (d *Dashboard) ChartRange() core.Scope {
	return d.chart.Scope()
}

// SetListRange gives the transaction list its own scope. A nil scope
// returns the list to the chart cache.
func (d *Dashboard) SetListRange(ctx context.Context, scope *core.Scope) error {
	d.rangeMu.Lock()
	defer d.rangeMu.Unlock()

	if scope == nil {
		d.mu.Lock()
		feed := d.list
		d.list = nil
		d.listScope = nil
		d.listVer++
		d.mu.Unlock()
		if feed != nil {
			feed.Close()
		}
		d.notify()
		return nil
	}
	if err := scope.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	feed := d.list
	d.mu.RUnlock()

	if feed == nil {
		// Seed with what the list shows now so it never blanks out.
		cache := NewCache()
		cache.ApplySnapshot(d.chart.Cache().Current())
		feed = NewFeed(d.store, cache, d.onListChange, d.logger)
		if err := feed.Open(ctx, *scope); err != nil {
			feed.Close()
			return fmt.Errorf("set list range: %w", err)
		}
	} else if err := feed.Open(ctx, *scope); err != nil {
		return fmt.Errorf("set list range: %w", err)
	}

	s := *scope
	d.mu.Lock()
	d.list = feed
	d.listScope = &s
	d.listVer++
	d.mu.Unlock()
	d.notify()
	return nil
}

// ListRange returns the list scope, or nil when the list shares the chart
// cache.
func (d *Dashboard) ListRange() *core.Scope {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.listScope == nil {
		return nil
	}
	s := *d.listScope
	return &s
}

// Views returns the latest derived views.
func (d *Dashboard) Views() Views {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.views
}

// Transactions returns the list filtered by state's active filter,
// newest first, and the list version it was computed from.
func (d *Dashboard) Transactions(state *ViewState) ([]core.Transaction, uint64) {
	d.mu.RLock()
	source := d.chart.Cache()
	if d.list != nil {
		source = d.list.Cache()
	}
	version := d.listVer
	d.mu.RUnlock()
	return ApplyFilter(source.Current(), state.Filter()), version
}

// ListVersion increases whenever the transaction list may have changed.
func (d *Dashboard) ListVersion() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listVer
}

// Watch registers fn for every update. fn runs on a store delivery
// goroutine and must return quickly. The returned func unregisters it.
func (d *Dashboard) Watch(fn func(Update)) (cancel func()) {
	d.mu.Lock()
	id := d.nextWatch
	d.nextWatch++
	d.watchers[id] = fn
	d.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.watchers, id)
			d.mu.Unlock()
		})
	}
}

// NewTransaction opens a create session.
func (d *Dashboard) NewTransaction() *EditSession {
	return StartCreate(d.store, d.session)
}

// EditTransaction loads id and opens an edit session seeded with it.
func (d *Dashboard) EditTransaction(ctx context.Context, id string) (*EditSession, error) {
	seed, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", id, err)
	}
	return StartEdit(d.store, seed, d.session), nil
}

// Transaction loads a single record from the store.
func (d *Dashboard) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	return d.store.GetByID(ctx, id)
}

// DeleteTransaction removes id from the store. The cache is left alone
// and catches up with the next snapshot.
func (d *Dashboard) DeleteTransaction(ctx context.Context, id string) error {
	if err := d.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	d.logger.InfoContext(ctx, "transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTxID, id)
	return nil
}

// Profile returns the owner of the record set.
func (d *Dashboard) Profile(ctx context.Context) (core.Profile, error) {
	p, err := d.store.Profile(ctx)
	if err != nil {
		return core.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// Close stops both subscriptions. Cached data stays readable.
func (d *Dashboard) Close() {
	d.chart.Close()
	d.mu.Lock()
	feed := d.list
	d.list = nil
	d.mu.Unlock()
	if feed != nil {
		feed.Close()
	}
}

func (d *Dashboard) onChartChange(version uint64) {
	records, current := d.chart.Cache().Snapshot()
	if current != version {
		// A newer snapshot landed; its own callback recomputes.
		return
	}
	if d.publishViews(ComputeViews(records, current)) {
		d.notify()
	}
}

// publishViews installs views unless views from a newer cache version are
// already in place.
func (d *Dashboard) publishViews(views Views) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if views.Version <= d.views.Version {
		return false
	}
	d.views = views
	if d.list == nil {
		d.listVer++
	}
	return true
}

func (d *Dashboard) onListChange(uint64) {
	d.mu.Lock()
	d.listVer++
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) notify() {
	d.mu.RLock()
	u := Update{Views: d.views, ListVersion: d.listVer}
	fns := make([]func(Update), 0, len(d.watchers))
	for _, fn := range d.watchers {
		fns = append(fns, fn)
	}
	d.mu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}
