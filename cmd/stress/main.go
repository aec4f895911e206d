package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openvoyage/travel-engine/internal/adapter/storage"
	"github.com/openvoyage/travel-engine/internal/core/domain"
	"github.com/openvoyage/travel-engine/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	entryID       = "stress-hotel-entry"
	initialStock  = 20
	totalRequests = 50
	holdTTL       = time.Minute
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	ref := domain.StockRef{EntryID: entryID, Tier: domain.OccupancyDouble}

	// Clear previous run
	rdb.Del(ctx, "stock:"+ref.String())

	store := storage.NewRedisStore(rdb)
	if err := store.SetStock(ctx, ref.String(), initialStock); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	guard := service.NewAvailabilityGuard(store, holdTTL, zap.NewNop())

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent reserve-then-commit attempts
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := guard.TryReserve(ctx, ref, 1)
			if err != nil {
				failCount.Add(1)
				return
			}
			if err := guard.Commit(ctx, res); err != nil {
				failCount.Add(1)
				return
			}
			successCount.Add(1)
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d reservations succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	// Verify final stock in Redis
	finalStock, _ := store.GetStock(ctx, ref.String())
	fmt.Printf("Final Redis Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}
