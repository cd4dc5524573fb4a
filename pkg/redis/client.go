package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("redis: cache miss")

const carbonKeyPrefix = "carbon:"

// Client wraps the Redis connection.
type Client struct {
	rdb goredis.UniversalClient
}

// NewClient connects to Redis with retry.
func NewClient(addr string) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	for i := 1; i <= 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			logrus.WithField("addr", addr).Info("connected to Redis")
			return &Client{rdb: rdb}, nil
		}
		logrus.WithField("attempt", i).Warn("waiting for Redis")
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("redis: failed to connect after 20 attempts")
}

// Wrap builds a Client around an existing go-redis client.
func Wrap(rdb goredis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// CacheCarbonSavings stores an encoded savings document for userID.
func (c *Client) CacheCarbonSavings(ctx context.Context, userID string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, carbonKeyPrefix+userID, data, ttl).Err()
}

// GetCachedCarbonSavings returns the cached document or ErrMiss.
func (c *Client) GetCachedCarbonSavings(ctx context.Context, userID string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, carbonKeyPrefix+userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

// InvalidateCarbonSavings drops cached savings for every given user.
func (c *Client) InvalidateCarbonSavings(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = carbonKeyPrefix + id
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Close tears down the Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }
