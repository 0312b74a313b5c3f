package counters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/juju/clock"
	"go.uber.org/atomic"
)

const (
	// CounterTable is the persisted table holding all time counter totals.
	CounterTable = "DHCPV4_COUNTER_TABLE"
	// DefaultSyncInterval is the period between two reconciliations.
	DefaultSyncInterval = 30 * time.Second
)

var (
	ErrNoTable = errors.New("reconciler requires a counter table")
	ErrNoStore = errors.New("reconciler requires a counter store")
	ErrStopped = errors.New("reconciler has been stopped")
	// ErrMalformedCounter is returned for a persisted row holding a value that
	// is not a counter. The row is left untouched.
	ErrMalformedCounter = errors.New("malformed persisted counter")
)

// Store persists counter rows as field/value maps. Get of a missing row
// returns an empty map and no error.
type Store interface {
	Get(ctx context.Context, key string) (map[string]string, error)
	Set(ctx context.Context, key string, fields map[string]string) error
}

// RowKey returns the persisted row key of iface's counters in direction d.
func RowKey(iface string, d Direction) string {
	return iface + "|" + string(d)
}

// ReconcilerConfig holds the configuration of a Reconciler
type ReconcilerConfig struct {
	Table    *Table
	Store    Store
	Interval time.Duration
	Clock    clock.Clock
}

// Reconciler periodically folds the counter table into the store.
type Reconciler struct {
	table    *Table
	store    Store
	interval time.Duration
	clock    clock.Clock

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewReconciler validates cfg and fills in defaults.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Table == nil {
		return nil, ErrNoTable
	}
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Reconciler{
		table:    cfg.Table,
		store:    cfg.Store,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the periodic reconciliation goroutine.
func (r *Reconciler) Start() error {
	select {
	case <-r.stop:
		return ErrStopped
	default:
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil
	}
	glog.Infof("Starting DHCPv4 counter updates every %s", r.interval)
	go r.run()

	return nil
}

// Stop signals the reconciliation goroutine and waits for it to exit. A
// reconciliation in progress runs to completion.
func (r *Reconciler) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	glog.Info("Stopping DHCPv4 counter updates...")
	close(r.stop)
	<-r.done
}

func (r *Reconciler) run() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case <-r.clock.After(r.interval):
		}
		if err := r.Sync(context.TODO()); err != nil {
			glog.Errorf("failed to update DHCPv4 counters with error: %+v", err)
			continue
		}
		glog.V(5).Infof("DHCPv4 counters updated to %s", CounterTable)
	}
}

// Sync runs a single reconciliation: every row of a snapshot of the table is
// added to its persisted value, then the snapshot is subtracted from the live
// table. Rows that could not be persisted keep their counts for the next run.
func (r *Reconciler) Sync(ctx context.Context) error {
	snap := r.table.snapshot()
	ifaces := make([]string, 0, len(snap))
	for iface := range snap {
		ifaces = append(ifaces, iface)
	}
	sort.Strings(ifaces)

	persisted := make(map[string][]Direction, len(snap))
	var errs []error
	for _, iface := range ifaces {
		for _, d := range Directions {
			if err := r.syncRow(ctx, RowKey(iface, d), snap[iface].counters.Direction(d)); err != nil {
				errs = append(errs, err)
				continue
			}
			persisted[iface] = append(persisted[iface], d)
		}
	}
	r.table.settle(snap, persisted)

	return errors.Join(errs...)
}

func (r *Reconciler) syncRow(ctx context.Context, key string, delta map[string]uint64) error {
	existing, err := r.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read counters %s: %w", key, err)
	}
	fields := make(map[string]string, len(existing)+len(delta))
	for f, v := range existing {
		fields[f] = v
	}
	for kind, n := range delta {
		var total uint64
		if v, ok := existing[kind]; ok {
			if total, err = strconv.ParseUint(v, 10, 64); err != nil {
				return fmt.Errorf("%w %s %s=%q: %w", ErrMalformedCounter, key, kind, v, err)
			}
		}
		fields[kind] = strconv.FormatUint(total+n, 10)
	}
	if err := r.store.Set(ctx, key, fields); err != nil {
		return fmt.Errorf("failed to write counters %s: %w", key, err)
	}

	return nil
}
