package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/models"

	"github.com/redis/go-redis/v9"
)

const facilityKeyPrefix = "facility:"

// NewRedisClient builds a client from cfg.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

type RedisFacilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFacilityCache(client *redis.Client, ttl time.Duration) *RedisFacilityCache {
	return &RedisFacilityCache{
		client: client,
		ttl:    ttl,
	}
}

func facilityKey(id int64) string {
	return fmt.Sprintf("%s%d", facilityKeyPrefix, id)
}

func (r *RedisFacilityCache) Get(ctx context.Context, id int64) (*models.Facility, error) {
	if r.client == nil {
		return nil, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, facilityKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facility from redis: %w", err)
	}

	var f models.Facility
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal facility: %w", err)
	}
	return &f, nil
}

func (r *RedisFacilityCache) Set(ctx context.Context, f *models.Facility) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal facility: %w", err)
	}
	if err := r.client.Set(ctx, facilityKey(f.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set facility in redis: %w", err)
	}
	return nil
}

func (r *RedisFacilityCache) Invalidate(ctx context.Context, id int64) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := r.client.Del(ctx, facilityKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete facility from redis: %w", err)
	}
	return nil
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close is nil-safe.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
