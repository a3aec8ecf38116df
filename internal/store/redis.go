package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "blackjack" -> "blackjack:game:<id>".
	Prefix string
}

// Redis stores each record as a JSON value under its own key and keeps a set
// of ids per kind so scans do not need KEYS.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return NewRedisWithClient(client, opts.Prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "blackjack"
	}
	return &Redis{client: client, prefix: prefix}
}

// Client exposes the underlying client so the broadcast bridge can share the
// connection pool.
func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) recordKey(kind Kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, id)
}

func (r *Redis) indexKey(kind Kind) string {
	return fmt.Sprintf("%s:%s:ids", r.prefix, kind)
}

func (r *Redis) Create(ctx context.Context, rec Record) (Record, error) {
	if err := validateKey(rec.Kind, rec.ID); err != nil {
		return Record{}, err
	}

	stored := rec.Clone()
	stored.Version = 1
	payload, err := json.Marshal(stored)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s %s: %w", rec.Kind, rec.ID, err)
	}

	ok, err := r.client.SetNX(ctx, r.recordKey(rec.Kind, rec.ID), payload, 0).Result()
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: %s %s", ErrExists, rec.Kind, rec.ID)
	}
	if err := r.client.SAdd(ctx, r.indexKey(rec.Kind), rec.ID).Err(); err != nil {
		return Record{}, err
	}

	return stored, nil
}

func (r *Redis) Update(ctx context.Context, rec Record) (Record, error) {
	if err := validateKey(rec.Kind, rec.ID); err != nil {
		return Record{}, err
	}

	key := r.recordKey(rec.Kind, rec.ID)
	var stored Record

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, rec.Kind, rec.ID)
		}
		if err != nil {
			return err
		}

		var current Record
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode %s %s: %w", rec.Kind, rec.ID, err)
		}
		if current.Version != rec.Version {
			return fmt.Errorf("%w: %s %s at version %d, update based on %d",
				ErrConflict, rec.Kind, rec.ID, current.Version, rec.Version)
		}

		stored = rec.Clone()
		stored.Version = current.Version + 1
		payload, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", rec.Kind, rec.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return Record{}, fmt.Errorf("%w: %s %s changed during update", ErrConflict, rec.Kind, rec.ID)
	}
	if err != nil {
		return Record{}, err
	}
	return stored, nil
}

func (r *Redis) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	raw, err := r.client.Get(ctx, r.recordKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return rec, nil
}

func (r *Redis) Scan(ctx context.Context, kind Kind, match func(Record) bool) ([]Record, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(kind, id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []Record
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry outlived its record; skip it.
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", kind, ids[i], err)
		}
		if match == nil || match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Redis) Delete(ctx context.Context, kind Kind, id string) error {
	n, err := r.client.Del(ctx, r.recordKey(kind, id)).Result()
	if err != nil {
		return err
	}
	if err := r.client.SRem(ctx, r.indexKey(kind), id).Err(); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
