package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror keeps a run's mappings in Redis sets so several processes can
// harvest into one result and a later run can resume from it.
//
// Keys: hunter:<run>:<kind> indexes the emails, hunter:<run>:<kind>:<email>
// holds the sources of one email.
type RedisMirror struct {
	client *redis.Client
	runID  string
	ttl    time.Duration
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisMirror mirrors into runID's keys. A zero ttl keeps keys forever.
func NewRedisMirror(client *redis.Client, runID string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, runID: runID, ttl: ttl}
}

func (r *RedisMirror) indexKey(kind Kind) string {
	return fmt.Sprintf("hunter:%s:%s", r.runID, kind)
}

func (r *RedisMirror) sourcesKey(kind Kind, email string) string {
	return fmt.Sprintf("hunter:%s:%s:%s", r.runID, kind, email)
}

// Add unions m into the run's sets. SADD makes concurrent writers from other
// processes safe.
func (r *RedisMirror) Add(ctx context.Context, kind Kind, m Mapping) error {
	if len(m) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	index := r.indexKey(kind)
	for email, sources := range m {
		members := make([]interface{}, 0, len(sources))
		for id := range sources {
			members = append(members, id)
		}
		key := r.sourcesKey(kind, email)
		pipe.SAdd(ctx, index, email)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, index, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror %s: %w", kind, err)
	}
	return nil
}

// Load reads a mapping back.
func (r *RedisMirror) Load(ctx context.Context, kind Kind) (Mapping, error) {
	emails, err := r.client.SMembers(ctx, r.indexKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s index: %w", kind, err)
	}

	out := make(Mapping, len(emails))
	for _, email := range emails {
		sources, err := r.client.SMembers(ctx, r.sourcesKey(kind, email)).Result()
		if err != nil {
			return nil, fmt.Errorf("load %s sources for %s: %w", kind, email, err)
		}
		out[email] = NewSourceSet(sources...)
	}
	return out, nil
}
