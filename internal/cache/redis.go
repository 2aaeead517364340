package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const (
	keyPackages = "catalog:packages"
	keyAddons   = "catalog:addons"
)

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) GetPackages(ctx context.Context) ([]domain.Package, error) {
	var pkgs []domain.Package
	if err := r.get(ctx, keyPackages, &pkgs); err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (r *RedisCache) SetPackages(ctx context.Context, pkgs []domain.Package) error {
	return r.set(ctx, keyPackages, pkgs)
}

func (r *RedisCache) GetAddons(ctx context.Context) ([]domain.Addon, error) {
	var addons []domain.Addon
	if err := r.get(ctx, keyAddons, &addons); err != nil {
		return nil, err
	}
	return addons, nil
}

func (r *RedisCache) SetAddons(ctx context.Context, addons []domain.Addon) error {
	return r.set(ctx, keyAddons, addons)
}

func (r *RedisCache) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, keyPackages, keyAddons).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) get(ctx context.Context, key string, dst any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, key, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
