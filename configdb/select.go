package configdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/clock"
)

// Result is the outcome of a Select wait.
type Result int

const (
	// Object means a subscribed table has records pending.
	Object Result = iota
	// Timeout means no table became ready within the wait timeout.
	Timeout
	// Error means the underlying store reported a failure.
	Error
)

func (r Result) String() string {
	switch r {
	case Object:
		return "object"
	case Timeout:
		return "timeout"
	case Error:
		return "error"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

const (
	readyBacklog = 64
	errorBacklog = 16
)

// SubscriberTable accumulates change records for one CONFIG_DB table until
// they are popped by the subscriber.
type SubscriberTable struct {
	name string
	sel  *Select

	mtx       sync.Mutex
	pending   []Record
	signalled bool
}

// Name returns the table name.
func (t *SubscriberTable) Name() string {
	return t.name
}

// Push appends records to the table and marks it ready.
func (t *SubscriberTable) Push(records ...Record) {
	if len(records) == 0 {
		return
	}
	t.mtx.Lock()
	t.pending = append(t.pending, records...)
	notify := !t.signalled
	t.signalled = true
	t.mtx.Unlock()

	if notify {
		t.sel.notify(t)
	}
}

// Pops removes and returns every pending record in arrival order.
func (t *SubscriberTable) Pops() []Record {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	records := t.pending
	t.pending = nil
	t.signalled = false

	return records
}

// Select waits on a set of subscriber tables.
type Select struct {
	clock clock.Clock

	mtx    sync.Mutex
	tables map[string]*SubscriberTable

	ready chan *SubscriberTable
	errs  chan error
}

// NewSelect returns an empty Select. A nil clock selects the wall clock.
func NewSelect(clk clock.Clock) *Select {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Select{
		clock:  clk,
		tables: make(map[string]*SubscriberTable),
		ready:  make(chan *SubscriberTable, readyBacklog),
		errs:   make(chan error, errorBacklog),
	}
}

// Subscribe returns the subscriber table for name, creating it on first use.
func (s *Select) Subscribe(name string) *SubscriberTable {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if t, ok := s.tables[name]; ok {
		return t
	}
	t := &SubscriberTable{
		name: name,
		sel:  s,
	}
	s.tables[name] = t

	return t
}

// Table returns a previously subscribed table.
func (s *Select) Table(name string) (*SubscriberTable, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	t, ok := s.tables[name]

	return t, ok
}

// ReportError hands a store level failure to the next Wait call.
func (s *Select) ReportError(err error) {
	if err == nil {
		return
	}
	select {
	case s.errs <- err:
	default:
		glog.V(5).Infof("select error backlog is full, dropping error: %+v", err)
	}
}

func (s *Select) notify(t *SubscriberTable) {
	select {
	case s.ready <- t:
	default:
		// A stale readiness entry for this table is still queued, the
		// records pushed now are picked up by its Pops.
		glog.V(6).Infof("readiness backlog is full, table %s is already queued", t.name)
	}
}

// Wait blocks until a table is ready, the store reports an error, the timeout
// expires or ctx is done. A done context is reported as Error with ctx.Err().
func (s *Select) Wait(ctx context.Context, timeout time.Duration) (*SubscriberTable, Result, error) {
	select {
	case t := <-s.ready:
		return t, Object, nil
	case err := <-s.errs:
		return nil, Error, err
	case <-s.clock.After(timeout):
		return nil, Timeout, nil
	case <-ctx.Done():
		return nil, Error, ctx.Err()
	}
}
