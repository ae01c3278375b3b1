package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is an advisory cache in front of the number-state store. The
// database stays authoritative: every value here is a hint with a TTL,
// and cache errors degrade to direct DB reads.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func smallestAvailableKey(campaignID string) string {
	return fmt.Sprintf("catalog:smallest:%s", campaignID)
}

// GetSmallestAvailableHint returns the cached smallest-available number
// for a campaign, ok=false on miss.
func (c *Client) GetSmallestAvailableHint(ctx context.Context, campaignID string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, smallestAvailableKey(campaignID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetSmallestAvailableHint caches the smallest-available number. Short
// TTL: reservations move the frontier constantly.
func (c *Client) SetSmallestAvailableHint(ctx context.Context, campaignID string, number int64) error {
	return c.rdb.Set(ctx, smallestAvailableKey(campaignID), number, 15*time.Second).Err()
}

// InvalidateCatalog drops catalog hints after a write that changed
// availability.
func (c *Client) InvalidateCatalog(ctx context.Context, campaignID string) error {
	return c.rdb.Del(ctx, smallestAvailableKey(campaignID)).Err()
}

// MarkWebhookSeen records a webhook content hash, returning true when it
// was already present. Advisory fast path only; the create-once row in
// Postgres is the real idempotency boundary.
func (c *Client) MarkWebhookSeen(ctx context.Context, contentHash string, ttl time.Duration) (bool, error) {
	set, err := c.rdb.SetNX(ctx, fmt.Sprintf("webhook:seen:%s", contentHash), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// AcquireLock acquires a best-effort distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
