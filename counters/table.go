package counters

import (
	"math"
	"sync"

	"github.com/golang/glog"
)

// CalculateDelta returns the forward distance from oldValue to newValue,
// treating a smaller newValue as a wrap of the 64 bit counter.
func CalculateDelta(newValue, oldValue uint64) uint64 {
	if newValue >= oldValue {
		return newValue - oldValue
	}
	return (math.MaxUint64 - oldValue) + newValue + 1
}

type entry struct {
	counters Counters
	// generation changes every time the interface is (re)initialized.
	generation uint64
}

// Table accumulates per interface DHCP message counters that have not been
// persisted yet. All methods are safe for concurrent use.
type Table struct {
	mtx        sync.Mutex
	interfaces map[string]*entry
	generation uint64
}

// NewTable returns an empty counter table.
func NewTable() *Table {
	return &Table{
		interfaces: make(map[string]*entry),
	}
}

// InitializeInterface creates, or resets to zero, the counters of iface.
func (t *Table) InitializeInterface(iface string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.initialize(iface)
}

func (t *Table) initialize(iface string) *entry {
	t.generation++
	e := &entry{
		counters:   newCounters(),
		generation: t.generation,
	}
	t.interfaces[iface] = e

	return e
}

// RemoveInterface discards every counter of iface.
func (t *Table) RemoveInterface(iface string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	delete(t.interfaces, iface)
}

// IncrementCounter adds one to the msgType counter of iface in direction dir.
// Counters for an unknown interface are created on the fly.
func (t *Table) IncrementCounter(iface string, dir Direction, msgType MessageType) {
	if !dir.valid() {
		glog.Errorf("invalid counter direction %q for interface %s", string(dir), iface)
		return
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	e, ok := t.interfaces[iface]
	if !ok {
		e = t.initialize(iface)
	}
	e.counters.Direction(dir)[msgType.String()]++
}

// GetCountersData returns a copy of every interface's counters taken at a
// single instant.
func (t *Table) GetCountersData() map[string]Counters {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	data := make(map[string]Counters, len(t.interfaces))
	for iface, e := range t.interfaces {
		data[iface] = e.counters.clone()
	}

	return data
}

func (t *Table) snapshot() map[string]entry {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	snap := make(map[string]entry, len(t.interfaces))
	for iface, e := range t.interfaces {
		snap[iface] = entry{
			counters:   e.counters.clone(),
			generation: e.generation,
		}
	}

	return snap
}

// settle removes the snapshot values of the persisted rows from the live
// counters, leaving only increments made after the snapshot was taken.
func (t *Table) settle(snap map[string]entry, persisted map[string][]Direction) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	for iface, dirs := range persisted {
		live, ok := t.interfaces[iface]
		if !ok {
			continue
		}
		old := snap[iface]
		// Interface was reset while the snapshot was being persisted.
		if live.generation != old.generation {
			continue
		}
		for _, d := range dirs {
			flushed := old.counters.Direction(d)
			cur := live.counters.Direction(d)
			for kind, v := range cur {
				cur[kind] = CalculateDelta(v, flushed[kind])
			}
		}
	}
}
