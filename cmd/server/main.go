package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openvoyage/travel-engine/internal/adapter/handler"
	"github.com/openvoyage/travel-engine/internal/adapter/storage"
	"github.com/openvoyage/travel-engine/internal/config"
	"github.com/openvoyage/travel-engine/internal/core/domain"
	"github.com/openvoyage/travel-engine/internal/core/service"
	"github.com/openvoyage/travel-engine/internal/port"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize adapters
	store := storage.NewRedisStore(rdb)
	repo := storage.NewMySQLAdapter(db)

	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	// Initialize services
	guard := service.NewAvailabilityGuard(store, cfg.HoldTTL, logger)
	quotes := service.NewQuoteService(repo)
	composer := service.NewComposer(repo, repo)
	bookings := service.NewBookingService(guard, repo, repo, store, cfg.PriceTolerance, logger, cfg.QueueSize)

	// Start hold sweeper
	go guard.Run(ctx, cfg.SweepInterval)
	logger.Info("started hold sweeper", zap.Duration("interval", cfg.SweepInterval))

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, bookings.Queue(), repo, guard, logger)
		}(i)
	}
	logger.Info("started workers", zap.Int("count", cfg.WorkerCount))

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(quotes, composer, bookings, guard, repo, repo)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/quote", httpHandler.Quote)
	mux.HandleFunc("/api/entries", httpHandler.FindEntries)
	mux.HandleFunc("/api/resources", httpHandler.GetResource)
	mux.HandleFunc("/api/offers/compose", httpHandler.ComposeOffer)
	mux.HandleFunc("/api/booking/finalize", httpHandler.Finalize)
	mux.HandleFunc("/api/stock/adjust", httpHandler.AdjustStock)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	// Stop the sweeper before draining the queue
	cancel()

	// Close booking queue and wait for workers
	bookings.Close()
	wg.Wait()
	logger.Info("workers stopped")

	// Close connections
	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

// workerLoop persists committed bookings. A booking the database refuses is
// compensated by restoring its counters through the guard's serialization
// point.
func workerLoop(id int, queue <-chan domain.Booking, repo port.BookingRepository, guard *service.AvailabilityGuard, logger *zap.Logger) {
	for booking := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := repo.CreateBooking(ctx, booking); err != nil {
			logger.Error("failed to save booking",
				zap.Int("worker", id), zap.String("booking_id", booking.ID), zap.Error(err))

			for _, item := range booking.Items {
				if _, rollbackErr := guard.Adjust(ctx, item.Ref, item.Quantity); rollbackErr != nil {
					logger.Error("CRITICAL rollback failed",
						zap.Int("worker", id),
						zap.String("booking_id", booking.ID),
						zap.String("ref", item.Ref.String()),
						zap.Error(rollbackErr))
				}
			}
		} else {
			logger.Info("saved booking",
				zap.Int("worker", id), zap.String("booking_id", booking.ID))
		}

		cancel()
	}
}
