// Package cache is a small read-through cache for tier listings on
// Valkey/Redis. Tier reads dominate traffic during an on-sale; handlers
// serve the cached JSON body and invalidate on any inventory mutation.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type ValkeyClient struct {
	client *redis.Client
	ttl    time.Duration
}

type Config struct {
	Addr     string
	Password string
	TTL      time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{client: rdb, ttl: cfg.TTL}, nil
}

func tierKey(id string) string { return "tier:" + id }

const tierListKey = "tiers:all"

// GetTierRaw returns the cached JSON body for a tier, or nil on a miss.
func (v *ValkeyClient) GetTierRaw(ctx context.Context, id string) ([]byte, error) {
	body, err := v.client.Get(ctx, tierKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return body, nil
}

func (v *ValkeyClient) SetTierRaw(ctx context.Context, id string, body []byte) error {
	return v.client.Set(ctx, tierKey(id), body, v.ttl).Err()
}

func (v *ValkeyClient) GetTierListRaw(ctx context.Context) ([]byte, error) {
	body, err := v.client.Get(ctx, tierListKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return body, nil
}

func (v *ValkeyClient) SetTierListRaw(ctx context.Context, body []byte) error {
	return v.client.Set(ctx, tierListKey, body, v.ttl).Err()
}

// InvalidateTier drops both the single-tier entry and the list; called
// after any write that changes availability.
func (v *ValkeyClient) InvalidateTier(ctx context.Context, id string) error {
	return v.client.Del(ctx, tierKey(id), tierListKey).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
