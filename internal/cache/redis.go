package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores trips by id. Trips never change after creation, so
// entries only leave through the TTL. Seat state is never cached: the
// database is the only source of availability.
type RedisCache struct {
	client   *redis.Client
	tripsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, tripsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		tripsTTL,
	)
}

func NewRedisCacheWithClient(client *redis.Client, tripsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, tripsTTL: tripsTTL}
}

// GetTrip returns nil without an error on a cache miss.
func (c *RedisCache) GetTrip(ctx context.Context, id string) (*domain.Trip, error) {
	data, err := c.client.Get(ctx, tripKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var trip domain.Trip
	if err := json.Unmarshal(data, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (c *RedisCache) SetTrip(ctx context.Context, trip *domain.Trip) error {
	payload, err := json.Marshal(trip)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tripKey(trip.ID), payload, c.tripsTTL).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func tripKey(id string) string {
	return "cache:trip:" + id
}
