package backend

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spice-admin/customer-app-sub000/internal/cart"
)

type Redis struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedis stores carts under cart:<owner>. A zero ttl keeps carts forever; otherwise each
// save refreshes the expiry with up to five minutes of jitter.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, baseTTL: ttl}
}

func (r *Redis) For(ownerID string) cart.Persistence {
	return redisCart{r: r, key: cartKey(ownerID)}
}

func cartKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}

type redisCart struct {
	r   *Redis
	key string
}

func (c redisCart) Load(ctx context.Context) ([]byte, error) {
	data, err := c.r.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (c redisCart) Save(ctx context.Context, data []byte) error {
	var ttl time.Duration
	if c.r.baseTTL > 0 {
		ttl = c.r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	}
	if err := c.r.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
