//go:build integration

package testutil

import (
	"context"
	"testing"
)

// Seed maps obj-type -> primary key -> field -> value.
type Seed map[string]map[string]map[string]string

// SetupDB flushes the test DB and seeds it. Each entry becomes a Redis
// hash at "<obj-type>|<pk>".
func SetupDB(t *testing.T, seed Seed) {
	t.Helper()
	SkipIfNoRedis(t)

	client := RedisClient(t)
	ctx := context.Background()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", TestDB, err)
	}
	t.Cleanup(func() { client.FlushDB(context.Background()) })

	for objType, rows := range seed {
		for pk, fields := range rows {
			key := objType + "|" + pk
			args := make([]interface{}, 0, len(fields)*2)
			for k, v := range fields {
				args = append(args, k, v)
			}
			if err := client.HSet(ctx, key, args...).Err(); err != nil {
				t.Fatalf("seeding %s: %v", key, err)
			}
		}
	}
}

// ReadEntry reads the hash for one row.
func ReadEntry(t *testing.T, objType, pk string) map[string]string {
	t.Helper()

	key := objType + "|" + pk
	vals, err := RedisClient(t).HGetAll(context.Background(), key).Result()
	if err != nil {
		t.Fatalf("reading %s: %v", key, err)
	}
	return vals
}

// EntryExists checks if a row exists.
func EntryExists(t *testing.T, objType, pk string) bool {
	t.Helper()

	key := objType + "|" + pk
	n, err := RedisClient(t).Exists(context.Background(), key).Result()
	if err != nil {
		t.Fatalf("checking existence of %s: %v", key, err)
	}
	return n > 0
}
