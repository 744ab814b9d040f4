//go:build integration

package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/ctlsh/internal/testutil"
)

func TestRedisBackend(t *testing.T) {
	testutil.SetupDB(t, testutil.Seed{
		"forwarding-config": {
			"forwarding": {"id": "forwarding", "access-priority": "100"},
		},
		"port": {
			"Ethernet1": {"id": "Ethernet1", "switch": "00:00:00:00:00:00:00:01"},
			"Ethernet2": {"id": "Ethernet2", "switch": "00:00:00:00:00:00:00:02"},
		},
	})
	ctx := testutil.Context(t)
	b := NewRedisBackend(testutil.RedisAddr(), testutil.TestDB)
	defer b.Close()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	rows, err := b.Query(ctx, "port", map[string]interface{}{"switch": "00:00:00:00:00:00:00:02"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "Ethernet2" {
		t.Errorf("filtered rows = %v", rows)
	}

	if err := b.Update(ctx, "forwarding-config", "id", "forwarding", Row{"access-priority": int64(5), "core-priority": nil}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := testutil.ReadEntry(t, "forwarding-config", "forwarding")
	if diff := cmp.Diff(map[string]string{"id": "forwarding", "access-priority": "5"}, got); diff != "" {
		t.Errorf("after Update (-want +got):\n%s", diff)
	}

	if err := b.Create(ctx, "tag", "id", Row{"id": "default|a|1", "persist": true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !testutil.EntryExists(t, "tag", "default|a|1") {
		t.Error("created row missing")
	}

	if err := b.Delete(ctx, "port", nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if testutil.EntryExists(t, "port", "Ethernet1") {
		t.Error("rows left after Delete")
	}

	names, err := b.TableNames(ctx)
	if err != nil {
		t.Fatalf("TableNames: %v", err)
	}
	if diff := cmp.Diff([]string{"forwarding-config", "tag"}, names); diff != "" {
		t.Errorf("TableNames (-want +got):\n%s", diff)
	}
}
