// Package boltdb persists counter rows in a local bolt file, for relays that
// run without an arango server.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cisco-open/dhcp4relay/counters"
	"github.com/golang/glog"
	bolt "go.etcd.io/bbolt"
)

var bucket = []byte(counters.CounterTable)

type boltDB struct {
	db *bolt.DB
}

// DB is a counter store that owns an open bolt file.
type DB interface {
	counters.Store
	Close() error
}

var _ counters.Store = &boltDB{}

// NewDBSrvClient opens, or creates, the bolt file at path along with the
// counter table bucket.
func NewDBSrvClient(path string) (DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", counters.CounterTable, err)
	}
	glog.Infof("Opened counter store %s", path)

	return &boltDB{db: db}, nil
}

func (b *boltDB) Get(_ context.Context, key string) (map[string]string, error) {
	fields := map[string]string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &fields)
	})
	if err != nil {
		return nil, err
	}

	return fields, nil
}

func (b *boltDB) Set(_ context.Context, key string, fields map[string]string) error {
	v, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), v)
	})
}

func (b *boltDB) Close() error {
	return b.db.Close()
}
