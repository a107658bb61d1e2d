package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docslot/pkg/model"
)

// EntryKey identifies one cached projection. Entries are grouped by (DoctorID, Date) so that a
// booking change drops every variant at once; Version is the doctor's updated_at, which makes
// edits to working hours or flags miss the old entries.
type EntryKey struct {
	DoctorID    string
	Date        string
	Version     time.Time
	Granularity int
	Service     model.ServiceKind
}

func (k EntryKey) group() string {
	return k.DoctorID + ":" + k.Date
}

func (k EntryKey) variant() string {
	service := string(k.Service)
	if service == "" {
		service = "any"
	}
	return fmt.Sprintf("%d:%d:%s", k.Version.UnixNano(), k.Granularity, service)
}

// Cache stores projections per (doctor, date) group. Every group carries a generation that
// Invalidate advances; Set stores only when the generation read before the bookings were loaded
// is still current, so a projection computed against a snapshot older than the last booking
// change is never written back.
type Cache interface {
	Get(ctx context.Context, key EntryKey) ([]model.Interval, bool, error)
	Generation(ctx context.Context, doctorID, date string) (int64, error)
	Set(ctx context.Context, key EntryKey, generation int64, free []model.Interval) error
	Invalidate(ctx context.Context, doctorID, date string) error
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, EntryKey) ([]model.Interval, bool, error) { return nil, false, nil }

func (NoopCache) Generation(context.Context, string, string) (int64, error) { return 0, nil }

func (NoopCache) Set(context.Context, EntryKey, int64, []model.Interval) error { return nil }

func (NoopCache) Invalidate(context.Context, string, string) error { return nil }

type memoryEntry struct {
	free    []model.Interval
	expires time.Time
}

// MemoryCache keeps generations for every group it has invalidated, one counter per
// (doctor, date) that ever had a booking change.
type MemoryCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	entries     map[string]map[string]memoryEntry
	generations map[string]int64
	now         func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:         ttl,
		entries:     make(map[string]map[string]memoryEntry),
		generations: make(map[string]int64),
		now:         time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key EntryKey) ([]model.Interval, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.entries[key.group()]
	if !ok {
		return nil, false, nil
	}
	e, ok := group[key.variant()]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(group, key.variant())
		if len(group) == 0 {
			delete(c.entries, key.group())
		}
		return nil, false, nil
	}
	return append([]model.Interval(nil), e.free...), true, nil
}

func (c *MemoryCache) Generation(_ context.Context, doctorID, date string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generations[EntryKey{DoctorID: doctorID, Date: date}.group()], nil
}

func (c *MemoryCache) Set(_ context.Context, key EntryKey, generation int64, free []model.Interval) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[key.group()] != generation {
		return nil
	}
	group, ok := c.entries[key.group()]
	if !ok {
		group = make(map[string]memoryEntry)
		c.entries[key.group()] = group
	}
	group[key.variant()] = memoryEntry{
		free:    append([]model.Interval(nil), free...),
		expires: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, doctorID, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	group := EntryKey{DoctorID: doctorID, Date: date}.group()
	c.generations[group]++
	delete(c.entries, group)
	return nil
}

const (
	redisKeyPrefix           = "docslot:availability:"
	redisGenerationKeyPrefix = "docslot:availability-gen:"
	minGenerationTTL         = 24 * time.Hour
)

var errStaleGeneration = errors.New("availability generation changed")

// RedisCache stores each (doctor, date) group as one hash whose fields are the variants,
// so invalidation is a single DEL shared by every instance. The group's generation is a
// counter key next to it; Set watches that key, so an INCR between the read and the write
// aborts the write.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key EntryKey) ([]model.Interval, bool, error) {
	raw, err := c.client.HGet(ctx, redisKeyPrefix+key.group(), key.variant()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget: %w", err)
	}

	var free []model.Interval
	if err := json.Unmarshal(raw, &free); err != nil {
		return nil, false, fmt.Errorf("decode cached availability: %w", err)
	}
	return free, true, nil
}

func (c *RedisCache) Generation(ctx context.Context, doctorID, date string) (int64, error) {
	gen, err := readGeneration(ctx, c.client, EntryKey{DoctorID: doctorID, Date: date}.group())
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) Set(ctx context.Context, key EntryKey, generation int64, free []model.Interval) error {
	raw, err := json.Marshal(free)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}

	redisKey := redisKeyPrefix + key.group()
	genKey := redisGenerationKeyPrefix + key.group()
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, key.group())
		if err != nil {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, key.variant(), raw)
			pipe.Expire(ctx, redisKey, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("redis hset: %w", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, doctorID, date string) error {
	group := EntryKey{DoctorID: doctorID, Date: date}.group()
	genKey := redisGenerationKeyPrefix + group
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKeyPrefix+group)
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, max(c.ttl, minGenerationTTL))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, client stringGetter, group string) (int64, error) {
	gen, err := client.Get(ctx, redisGenerationKeyPrefix+group).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}
