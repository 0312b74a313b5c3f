package mockdb

import (
	"context"
	"sync"

	"github.com/cisco-open/dhcp4relay/counters"
	"github.com/golang/glog"
)

type mockDB struct {
	mtx  sync.Mutex
	rows map[string]map[string]string

	// errors injected per row key
	failKeys map[string]error
}

// MockDB is an in-memory counter store.
type MockDB interface {
	counters.Store
	// Row returns a copy of the persisted row for key.
	Row(key string) map[string]string
	// Fail makes every access to key return err, a nil err clears it.
	Fail(key string, err error)
}

var _ counters.Store = &mockDB{}

// NewDBSrvClient returns an empty in-memory counter store.
func NewDBSrvClient() MockDB {
	glog.Info("Starting Mock DB Client")
	return &mockDB{
		rows:     make(map[string]map[string]string),
		failKeys: make(map[string]error),
	}
}

func (m *mockDB) Get(_ context.Context, key string) (map[string]string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if err := m.failKeys[key]; err != nil {
		return nil, err
	}
	glog.V(5).Infof("mock get %s", key)

	return copyRow(m.rows[key]), nil
}

func (m *mockDB) Set(_ context.Context, key string, fields map[string]string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if err := m.failKeys[key]; err != nil {
		return err
	}
	glog.V(5).Infof("mock set %s: %+v", key, fields)
	m.rows[key] = copyRow(fields)

	return nil
}

func (m *mockDB) Row(key string) map[string]string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return copyRow(m.rows[key])
}

func (m *mockDB) Fail(key string, err error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if err == nil {
		delete(m.failKeys, key)
		return
	}
	m.failKeys[key] = err
}

func copyRow(row map[string]string) map[string]string {
	c := make(map[string]string, len(row))
	for f, v := range row {
		c[f] = v
	}
	return c
}
