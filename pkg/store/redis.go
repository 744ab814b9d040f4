package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/ctlsh/pkg/model"
)

// RedisBackend keeps each row as a Redis hash at "<obj-type>|<pk>". Field
// values are stored as text; callers coerce them through the object model.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a backend for the given Redis address and DB.
func NewRedisBackend(addr string, db int) *RedisBackend {
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

// Connect tests the connection.
func (b *RedisBackend) Connect(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func rowKey(objType, pk string) string {
	return objType + "|" + pk
}

// tableKeys returns every key of objType, sorted.
func (b *RedisBackend) tableKeys(ctx context.Context, objType string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, rowKey(objType, "*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", objType, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// query returns matching rows along with their Redis keys.
func (b *RedisBackend) query(ctx context.Context, objType string, filter map[string]interface{}) ([]string, []Row, error) {
	keys, err := b.tableKeys(ctx, objType)
	if err != nil || len(keys) == 0 {
		return nil, nil, err
	}

	pipe := b.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, nil, fmt.Errorf("reading %s: %w", objType, err)
	}

	var matchedKeys []string
	var rows []Row
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		row := make(Row, len(vals))
		for f, v := range vals {
			row[f] = v
		}
		if Matches(row, filter) {
			matchedKeys = append(matchedKeys, keys[i])
			rows = append(rows, row)
		}
	}
	return matchedKeys, rows, nil
}

// Query returns the rows of objType matching filter, in key order.
func (b *RedisBackend) Query(ctx context.Context, objType string, filter map[string]interface{}) ([]Row, error) {
	_, rows, err := b.query(ctx, objType, filter)
	return rows, err
}

// Create writes a new row. The row must carry its primary key.
func (b *RedisBackend) Create(ctx context.Context, objType, pkField string, row Row) error {
	pk, ok := row[pkField]
	if !ok || pk == nil {
		return fmt.Errorf("creating %s: primary key %q missing", objType, pkField)
	}
	key := rowKey(objType, model.FormatValue(pk))
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("creating %s: %w", key, err)
	}
	if n > 0 {
		return fmt.Errorf("creating %s: already exists", key)
	}
	return b.write(ctx, key, row)
}

// Update changes fields of an existing row. Nil values delete the field.
func (b *RedisBackend) Update(ctx context.Context, objType, pkField, pk string, fields Row) error {
	key := rowKey(objType, pk)
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("updating %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("updating %s: no such row", key)
	}
	return b.write(ctx, key, fields)
}

func (b *RedisBackend) write(ctx context.Context, key string, fields Row) error {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	var set []interface{}
	var del []string
	for _, f := range names {
		if v := fields[f]; v == nil {
			del = append(del, f)
		} else {
			set = append(set, f, model.FormatValue(v))
		}
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(set) > 0 {
			pipe.HSet(ctx, key, set...)
		}
		if len(del) > 0 {
			pipe.HDel(ctx, key, del...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes every row matching filter.
func (b *RedisBackend) Delete(ctx context.Context, objType string, filter map[string]interface{}) error {
	keys, _, err := b.query(ctx, objType, filter)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting %s rows: %w", objType, err)
	}
	return nil
}

// TableNames lists the object types present in the database.
func (b *RedisBackend) TableNames(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	iter := b.client.Scan(ctx, 0, "*|*", 100).Iterator()
	for iter.Next(ctx) {
		if i := strings.Index(iter.Val(), "|"); i > 0 {
			seen[iter.Val()[:i]] = true
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
