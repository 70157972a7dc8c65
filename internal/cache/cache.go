// Package cache is the optional write-through store for remote busy
// intervals. Values are encrypted at rest in redis; keys carry only keyed
// hashes of the ids they are scoped to.
package cache

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/nacl/secretbox"

	"bookline/backend/internal/remote"
)

const keyPrefix = "rmt_events"

type EventCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	sealKey [32]byte
	macKey  []byte
	log     *slog.Logger
}

// New builds the cache. A nil redis client disables caching; every read is
// then a miss and writes are no-ops, so callers never branch on it.
func New(rdb *redis.Client, secret string, ttl time.Duration, log *slog.Logger) *EventCache {
	if log == nil {
		log = slog.Default()
	}
	c := &EventCache{
		rdb:    rdb,
		ttl:    ttl,
		macKey: []byte("bookline-cache-key:" + secret),
		log:    log.With(slog.String("component", "cache")),
	}
	c.sealKey = sha256.Sum256([]byte(secret))
	return c
}

func (c *EventCache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// RangeKey renders a fetch range into the cache key's range segment.
func RangeKey(start, end time.Time) string {
	return start.UTC().Format(time.RFC3339) + "/" + end.UTC().Format(time.RFC3339)
}

func (c *EventCache) Get(ctx context.Context, subscriberID, calendarID uuid.UUID, rangeKey string) ([]remote.BusyInterval, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, c.key(subscriberID, calendarID, rangeKey)).Bytes()
	if err != nil {
		return nil, false
	}
	plain, ok := c.open(raw)
	if !ok {
		return nil, false
	}
	var out []remote.BusyInterval
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *EventCache) Put(ctx context.Context, subscriberID, calendarID uuid.UUID, rangeKey string, intervals []remote.BusyInterval) {
	if !c.Enabled() {
		return
	}
	plain, err := json.Marshal(intervals)
	if err != nil {
		return
	}
	sealed, err := c.seal(plain)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(subscriberID, calendarID, rangeKey), sealed, c.ttl).Err(); err != nil {
		c.log.Warn("cache put failed", slog.Any("err", err))
	}
}

// Bust drops the subscriber's cached intervals, either for the given
// calendars or, with none given, for every calendar of the subscriber.
func (c *EventCache) Bust(ctx context.Context, subscriberID uuid.UUID, calendarIDs ...uuid.UUID) error {
	if !c.Enabled() {
		return nil
	}
	patterns := make([]string, 0, len(calendarIDs)+1)
	if len(calendarIDs) == 0 {
		patterns = append(patterns, fmt.Sprintf("%s:%s:*", keyPrefix, c.enc(subscriberID.String())))
	} else {
		for _, calID := range calendarIDs {
			patterns = append(patterns, fmt.Sprintf("%s:%s:%s:*", keyPrefix, c.enc(subscriberID.String()), c.enc(calID.String())))
		}
	}

	for _, pattern := range patterns {
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

// WrapClient decorates a remote client with read-through caching of
// ListBusy. Event writes pass through untouched.
func (c *EventCache) WrapClient(client remote.Client, subscriberID, calendarID uuid.UUID) remote.Client {
	if !c.Enabled() {
		return client
	}
	return &cachedClient{Client: client, cache: c, subscriberID: subscriberID, calendarID: calendarID}
}

type cachedClient struct {
	remote.Client
	cache        *EventCache
	subscriberID uuid.UUID
	calendarID   uuid.UUID
}

func (c *cachedClient) ListBusy(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error) {
	rangeKey := RangeKey(start, end)
	if cached, ok := c.cache.Get(ctx, c.subscriberID, c.calendarID, rangeKey); ok {
		return cached, nil
	}
	busy, err := c.Client.ListBusy(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c.cache.Put(ctx, c.subscriberID, c.calendarID, rangeKey, busy)
	return busy, nil
}

func (c *EventCache) key(subscriberID, calendarID uuid.UUID, rangeKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, c.enc(subscriberID.String()), c.enc(calendarID.String()), c.enc(rangeKey))
}

// enc is a deterministic keyed hash; ids never appear in redis in the
// clear, while equal inputs still map to equal key segments.
func (c *EventCache) enc(v string) string {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(v))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

func (c *EventCache) seal(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &c.sealKey), nil
}

func (c *EventCache) open(sealed []byte) ([]byte, bool) {
	if len(sealed) < 24 {
		return nil, false
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	return secretbox.Open(nil, sealed[24:], &nonce, &c.sealKey)
}
