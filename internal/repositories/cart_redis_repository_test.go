package repositories_test

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"mealcart/internal/models"
	"mealcart/internal/repositories"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisCartRepository(t *testing.T) {
	client := newRedisClient(t)
	testCartRepository(t, func(t *testing.T) repositories.CartRepository {
		require.NoError(t, client.FlushDB(context.Background()).Err())
		return repositories.NewRedisCartRepository(client, time.Hour)
	})
}

func TestRedisCartRepository_SetsTTL(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	require.NoError(t, client.FlushDB(ctx).Err())

	repo := repositories.NewRedisCartRepository(client, time.Hour)
	_, err := repo.AddItem(ctx, "ttl-user", meal("1", "Soup"))
	require.NoError(t, err)

	ttl, err := client.TTL(ctx, "cart:ttl-user").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestRedisCartRepository_ConcurrentWritesSucceed(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	require.NoError(t, client.FlushDB(ctx).Err())
	repo := repositories.NewRedisCartRepository(client, time.Hour)

	const writers = 8
	outcomes := make([]models.AddOutcome, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = repo.AddItem(ctx, "busy", meal(strconv.Itoa(i), "Meal"))
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == models.AddOutcomeCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AdjustQuantity(ctx, "busy", "0", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := repo.GetCart(ctx, "busy")
	require.NoError(t, err)
	require.Len(t, cart.Items, writers)
	idx := cart.FindItem("0")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, writers+1, cart.Items[idx].Quantity)
}
