package arangodb

import (
	"context"
	"fmt"
	"strings"

	driver "github.com/arangodb/go-driver"
	"github.com/cisco-open/dhcp4relay/counters"
	"github.com/golang/glog"
	"github.com/sbezverk/gobmp/pkg/tools"
)

// counterRow is the document a counter row is persisted as.
type counterRow struct {
	Key    string            `json:"_key,omitempty"`
	Row    string            `json:"row"`
	Fields map[string]string `json:"fields"`
}

type arangoDB struct {
	*ArangoConn
	counters driver.Collection
}

var _ counters.Store = &arangoDB{}

// NewDBSrvClient connects to the arango server and returns a counter store
// backed by the counter table collection.
func NewDBSrvClient(arangoSrv, user, pass, dbname string) (counters.Store, error) {
	if err := tools.URLAddrValidation(arangoSrv); err != nil {
		return nil, err
	}
	arangoConn, err := NewArango(ArangoConfig{
		URL:      arangoSrv,
		User:     user,
		Password: pass,
		Database: dbname,
	})
	if err != nil {
		return nil, err
	}
	arango := &arangoDB{
		ArangoConn: arangoConn,
	}
	if arango.counters, err = arango.ensureCollection(context.TODO(), counters.CounterTable); err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", counters.CounterTable, err)
	}
	glog.Infof("Connected to arango database %s, collection %s", dbname, counters.CounterTable)

	return arango, nil
}

// documentKey maps a row key to an arango document key, "|" is not a valid
// key character.
func documentKey(row string) string {
	return strings.ReplaceAll(row, "|", ":")
}

func (a *arangoDB) Get(ctx context.Context, key string) (map[string]string, error) {
	var r counterRow
	if _, err := a.counters.ReadDocument(ctx, documentKey(key), &r); err != nil {
		if !driver.IsNotFound(err) {
			return nil, err
		}
		return map[string]string{}, nil
	}
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}

	return r.Fields, nil
}

func (a *arangoDB) Set(ctx context.Context, key string, fields map[string]string) error {
	r := &counterRow{
		Key:    documentKey(key),
		Row:    key,
		Fields: fields,
	}
	if _, err := a.counters.CreateDocument(ctx, r); err != nil {
		if !driver.IsConflict(err) {
			return err
		}
		// The row already exists, replacing it with the latest totals
		if _, err := a.counters.ReplaceDocument(ctx, r.Key, r); err != nil {
			return err
		}
	}

	return nil
}
