package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSnapshotTTL = 24 * time.Hour

// OpenRedis connects and pings a Redis instance from a redis:// URL.
func OpenRedis(rawURL string) (*redis.Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

// LiveStore keeps per-game snapshots in Redis under game:live:<id>. It is
// the durable side of a running game: the in-memory registry stays
// authoritative, the snapshot is what survives a process restart.
type LiveStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLiveStore(rdb *redis.Client, ttl time.Duration) *LiveStore {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &LiveStore{rdb: rdb, ttl: ttl}
}

func (s *LiveStore) key(id string) string { return "game:live:" + strings.TrimSpace(id) }

// Save writes the snapshot, refreshing its TTL.
func (s *LiveStore) Save(ctx context.Context, snap *GameSnapshot) error {
	if s == nil || s.rdb == nil || snap == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(snap.ID), raw, s.ttl).Err()
}

// Load returns the snapshot for a game id, or nil when absent/expired.
func (s *LiveStore) Load(ctx context.Context, id string) (*GameSnapshot, error) {
	if s == nil || s.rdb == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap GameSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes a snapshot ahead of its TTL. The game paths never call
// it; finalized games keep their snapshot for post-restart reads.
func (s *LiveStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.key(id)).Err()
}
