package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestReserve_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	ref := "test-entry/double"
	holdID := uuid.New().String()

	// Setup
	client.Del(ctx, "stock:"+ref)
	store.SetStock(ctx, ref, 10)

	// Test
	ok, err := store.Reserve(ctx, holdID, ref, 3, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected success")
	}

	// Verify: stock decremented and hold recorded
	stock, _ := client.Get(ctx, "stock:"+ref).Int()
	if stock != 7 {
		t.Errorf("expected stock 7, got %d", stock)
	}
	heldRef, _ := client.HGet(ctx, "hold:"+holdID, "ref").Result()
	if heldRef != ref {
		t.Errorf("expected hold ref %s, got %s", ref, heldRef)
	}

	// Cleanup
	client.Del(ctx, "stock:"+ref, "hold:"+holdID)
	client.ZRem(ctx, "holds:deadlines", holdID)
}

func TestReserve_InsufficientStock(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	ref := "test-entry/double"
	holdID := uuid.New().String()

	// Setup
	client.Del(ctx, "stock:"+ref)
	store.SetStock(ctx, ref, 2)

	// Test - try to reserve more than available
	ok, err := store.Reserve(ctx, holdID, ref, 3, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected failure due to insufficient stock")
	}

	// Verify stock unchanged and no hold written
	stock, _ := client.Get(ctx, "stock:"+ref).Int()
	if stock != 2 {
		t.Errorf("expected stock 2, got %d", stock)
	}
	exists, _ := client.Exists(ctx, "hold:"+holdID).Result()
	if exists != 0 {
		t.Error("expected no hold record")
	}

	client.Del(ctx, "stock:"+ref)
}

func TestReserve_KeyNotExists(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)

	client.Del(ctx, "stock:nonexistent-entry")

	ok, err := store.Reserve(ctx, uuid.New().String(), "nonexistent-entry", 1, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected failure for nonexistent counter")
	}
}

func TestReserve_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	ref := "concurrent-entry"

	initialStock := 20
	totalRequests := 50

	// Setup
	client.Del(ctx, "stock:"+ref)
	store.SetStock(ctx, ref, initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Reserve(ctx, uuid.New().String(), ref, 1, time.Now().Add(time.Minute))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}

	stock, _ := client.Get(ctx, "stock:"+ref).Int()
	if stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}

	client.Del(ctx, "stock:"+ref)
}

func TestRelease_RestoresStockOnce(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	ref := "release-entry"
	holdID := uuid.New().String()

	// Setup
	client.Del(ctx, "stock:"+ref)
	store.SetStock(ctx, ref, 5)

	ok, err := store.Reserve(ctx, holdID, ref, 2, time.Now().Add(time.Minute))
	if err != nil || !ok {
		t.Fatalf("reserve failed: ok=%v err=%v", ok, err)
	}

	// First release restores the quantity
	ok, err = store.Release(ctx, holdID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first release to apply")
	}

	// Second release is a no-op
	ok, err = store.Release(ctx, holdID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second release to be a no-op")
	}

	stock, _ := client.Get(ctx, "stock:"+ref).Int()
	if stock != 5 {
		t.Errorf("expected stock 5, got %d", stock)
	}

	client.Del(ctx, "stock:"+ref)
}

func TestCommit_DiscardsHoldWithoutRestoring(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	ref := "commit-entry"
	holdID := uuid.New().String()

	// Setup
	client.Del(ctx, "stock:"+ref)
	store.SetStock(ctx, ref, 5)

	ok, err := store.Reserve(ctx, holdID, ref, 2, time.Now().Add(time.Minute))
	if err != nil || !ok {
		t.Fatalf("reserve failed: ok=%v err=%v", ok, err)
	}

	ok, err = store.Commit(ctx, holdID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected commit to apply")
	}

	// Releasing after commit must not re-increment
	ok, _ = store.Release(ctx, holdID)
	if ok {
		t.Error("expected release after commit to be a no-op")
	}

	stock, _ := client.Get(ctx, "stock:"+ref).Int()
	if stock != 3 {
		t.Errorf("expected stock 3, got %d", stock)
	}

	// Commit of an unknown hold reports false
	ok, _ = store.Commit(ctx, uuid.New().String())
	if ok {
		t.Error("expected commit of unknown hold to report false")
	}

	client.Del(ctx, "stock:"+ref)
}

func TestAdjust_RefusesNegativeResult(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	ref := "adjust-entry"

	// Setup
	client.Del(ctx, "stock:"+ref)
	store.SetStock(ctx, ref, 5)

	stock, err := store.Adjust(ctx, ref, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != 8 {
		t.Errorf("expected stock 8, got %d", stock)
	}

	stock, err = store.Adjust(ctx, ref, -10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stock != -1 {
		t.Errorf("expected refusal marker -1, got %d", stock)
	}

	current, _ := client.Get(ctx, "stock:"+ref).Int()
	if current != 8 {
		t.Errorf("expected stock 8 after refused adjust, got %d", current)
	}

	client.Del(ctx, "stock:"+ref)
}

func TestExpiredHolds_ReturnsOnlyPastDeadlines(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	ref := "expiry-entry"
	expiredID := uuid.New().String()
	liveID := uuid.New().String()

	// Setup
	client.Del(ctx, "stock:"+ref)
	store.SetStock(ctx, ref, 10)

	now := time.Now()
	if ok, _ := store.Reserve(ctx, expiredID, ref, 1, now.Add(-time.Minute)); !ok {
		t.Fatal("expired reserve failed")
	}
	if ok, _ := store.Reserve(ctx, liveID, ref, 1, now.Add(time.Hour)); !ok {
		t.Fatal("live reserve failed")
	}

	expired, err := store.ExpiredHolds(ctx, now, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := make(map[string]bool, len(expired))
	for _, id := range expired {
		found[id] = true
	}
	if !found[expiredID] {
		t.Errorf("expected %s in expired set", expiredID)
	}
	if found[liveID] {
		t.Errorf("did not expect %s in expired set", liveID)
	}

	// Cleanup
	store.Release(ctx, expiredID)
	store.Release(ctx, liveID)
	client.Del(ctx, "stock:"+ref)
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client)
	key := "booking:" + uuid.New().String()

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.SetIdempotency(ctx, key)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one caller wins the key
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}

	client.Del(ctx, key)
}
