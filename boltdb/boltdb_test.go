package boltdb

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cisco-open/dhcp4relay/counters"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.db")
	db, err := NewDBSrvClient(path)
	if err != nil {
		t.Fatalf("failed to open store with error: %+v", err)
	}
	ctx := context.TODO()
	key := counters.RowKey("Ethernet0", counters.RX)

	got, err := db.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty row, got %+v", got)
	}

	row := map[string]string{"Discover": "5", "Offer": "0"}
	if err := db.Set(ctx, key, row); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	// Rows survive a reopen.
	db, err = NewDBSrvClient(path)
	if err != nil {
		t.Fatalf("failed to reopen store with error: %+v", err)
	}
	defer db.Close()
	if got, err = db.Get(ctx, key); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, row) {
		t.Fatalf("expected %+v, got %+v", row, got)
	}
}

func TestReconcileIntoStore(t *testing.T) {
	db, err := NewDBSrvClient(filepath.Join(t.TempDir(), "counters.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	tbl := counters.NewTable()
	r, err := counters.NewReconciler(counters.ReconcilerConfig{Table: tbl, Store: db})
	if err != nil {
		t.Fatal(err)
	}
	tbl.IncrementCounter("Vlan1000", counters.TX, counters.Ack)
	tbl.IncrementCounter("Vlan1000", counters.TX, counters.Ack)
	if err := r.Sync(context.TODO()); err != nil {
		t.Fatal(err)
	}
	tx, err := db.Get(context.TODO(), "Vlan1000|TX")
	if err != nil {
		t.Fatal(err)
	}
	if tx["Acknowledge"] != "2" {
		t.Fatalf("expected Acknowledge 2, got %+v", tx)
	}
}
