package positions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// RedisStore keeps one hash per project: field = node ID, value = JSON
// position.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis parses a redis:// URL, connects and pings the server.
func DialRedis(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) key(project string) string {
	return s.prefix + "positions:" + project
}

// Load reads every field of the project's hash. Fields that fail to
// decode are skipped.
func (s *RedisStore) Load(ctx context.Context, project string) (map[string]geom.Vec3, error) {
	raw, err := s.client.HGetAll(ctx, s.key(project)).Result()
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	out := make(map[string]geom.Vec3, len(raw))
	for id, v := range raw {
		var p geom.Vec3
		if json.Unmarshal([]byte(v), &p) == nil {
			out[id] = p
		}
	}
	return out, nil
}

// Save replaces the hash in a single transaction.
func (s *RedisStore) Save(ctx context.Context, project string, positions map[string]geom.Vec3) error {
	if err := Validate(positions); err != nil {
		return err
	}
	fields, err := encodeFields(positions)
	if err != nil {
		return err
	}
	key := s.key(project)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	return nil
}

// Merge sets the given fields and returns the hash length.
func (s *RedisStore) Merge(ctx context.Context, project string, positions map[string]geom.Vec3) (int, error) {
	if err := Validate(positions); err != nil {
		return 0, err
	}
	key := s.key(project)
	if len(positions) == 0 {
		n, err := s.client.HLen(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("merge positions: %w", err)
		}
		return int(n), nil
	}
	fields, err := encodeFields(positions)
	if err != nil {
		return 0, err
	}
	var hlen *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		hlen = pipe.HLen(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("merge positions: %w", err)
	}
	return int(hlen.Val()), nil
}

// Delete removes the project's hash.
func (s *RedisStore) Delete(ctx context.Context, project string) error {
	if err := s.client.Del(ctx, s.key(project)).Err(); err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeFields(positions map[string]geom.Vec3) (map[string]any, error) {
	fields := make(map[string]any, len(positions))
	for id, p := range positions {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode position %q: %w", id, err)
		}
		fields[id] = string(b)
	}
	return fields, nil
}

var _ Store = (*RedisStore)(nil)
