package backend

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spice-admin/customer-app-sub000/internal/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return NewRedis(client, ttl), mr, cleanup
}

func TestRedis(t *testing.T) {
	r, _, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	exerciseBackend(t, r.For)
}

func TestRedis_KeyAndNoTTL(t *testing.T) {
	r, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, r.For("user-9").Save(context.Background(), []byte(`[]`)))

	assert.True(t, mr.Exists("cart:user-9"))
	assert.Equal(t, time.Duration(0), mr.TTL("cart:user-9"))
}

func TestRedis_TTLWithJitter(t *testing.T) {
	r, mr, cleanup := setupTestRedis(t, time.Hour)
	defer cleanup()

	require.NoError(t, r.For("user-9").Save(context.Background(), []byte(`[]`)))

	ttl := mr.TTL("cart:user-9")
	assert.GreaterOrEqual(t, ttl, time.Hour)
	assert.Less(t, ttl, time.Hour+5*time.Minute)
}

func TestRedis_ConnectionError(t *testing.T) {
	r, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()
	mr.Close()

	_, err := r.For("user-1").Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrNotFound)

	// a broken backend degrades to an empty cart instead of failing
	s := cart.NewStore(context.Background(), r.For("user-1"))
	assert.Empty(t, s.Items())
}
