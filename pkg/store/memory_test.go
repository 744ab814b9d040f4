package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryBackend_CRUD(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	if err := b.Create(ctx, "tag", "id", Row{"id": "default|a|1", "name": "a", "persist": nil}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := b.Create(ctx, "tag", "id", Row{"id": "default|a|1"}); err == nil {
		t.Error("duplicate Create should fail")
	}
	if err := b.Create(ctx, "tag", "id", Row{"name": "x"}); err == nil {
		t.Error("Create without pk should fail")
	}

	rows, _ := b.Query(ctx, "tag", nil)
	want := []Row{{"id": "default|a|1", "name": "a"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Query (-want +got):\n%s", diff)
	}

	// Returned rows are copies.
	rows[0]["name"] = "changed"
	again, _ := b.Query(ctx, "tag", map[string]interface{}{"name": "a"})
	if len(again) != 1 {
		t.Fatalf("stored row was mutated through a query result")
	}

	if err := b.Update(ctx, "tag", "id", "default|a|1", Row{"name": nil, "persist": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rows, _ = b.Query(ctx, "tag", map[string]interface{}{"name": nil})
	want = []Row{{"id": "default|a|1", "persist": true}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("after Update (-want +got):\n%s", diff)
	}
	if err := b.Update(ctx, "tag", "id", "missing", Row{}); err == nil {
		t.Error("Update of a missing row should fail")
	}

	if err := b.Delete(ctx, "tag", map[string]interface{}{"persist": "true"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rows, _ := b.Query(ctx, "tag", nil); len(rows) != 0 {
		t.Errorf("rows left after Delete: %v", rows)
	}
}

func TestMemoryBackend_QueryOrder(t *testing.T) {
	b := NewMemoryBackend()
	b.Seed("port", "id", Row{"id": "b"}, Row{"id": "c"}, Row{"id": "a"})

	rows, _ := b.Query(context.Background(), "port", nil)
	var ids []string
	for _, r := range rows {
		ids = append(ids, r["id"].(string))
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if b.Calls != 1 {
		t.Errorf("Calls = %d, want 1", b.Calls)
	}
}

func TestMatches(t *testing.T) {
	row := Row{"id": "x", "vlan": int64(10)}
	tests := []struct {
		name   string
		filter map[string]interface{}
		want   bool
	}{
		{"empty filter", nil, true},
		{"equal", map[string]interface{}{"id": "x"}, true},
		{"text compare", map[string]interface{}{"vlan": "10"}, true},
		{"float from json", map[string]interface{}{"vlan": float64(10)}, true},
		{"different", map[string]interface{}{"id": "y"}, false},
		{"nil matches unset", map[string]interface{}{"mac": nil}, true},
		{"nil rejects set", map[string]interface{}{"id": nil}, false},
		{"missing field", map[string]interface{}{"mac": "00:11"}, false},
	}
	for _, tt := range tests {
		if got := Matches(row, tt.filter); got != tt.want {
			t.Errorf("%s: Matches = %v, want %v", tt.name, got, tt.want)
		}
	}
}
