package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soluret/seatbook/internal/config"
	"github.com/soluret/seatbook/internal/identity"
	"github.com/soluret/seatbook/internal/postgres"
	"github.com/soluret/seatbook/internal/redis"
	memoryrepo "github.com/soluret/seatbook/internal/repository/memory"
	postgresrepo "github.com/soluret/seatbook/internal/repository/postgres"
	redisrepo "github.com/soluret/seatbook/internal/repository/redis"
	"github.com/soluret/seatbook/internal/service"
	"github.com/soluret/seatbook/internal/service/booking"
	"github.com/soluret/seatbook/internal/service/directory"
	"github.com/soluret/seatbook/internal/service/ports"
	"github.com/soluret/seatbook/internal/service/sweeper"
	httpgin "github.com/soluret/seatbook/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
	cache      *redisrepo.Cache
	pubsub     *redisrepo.AvailabilityPubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	var (
		ledger   ports.SeatLedger
		bookings ports.BookingStore
		events   ports.EventRepo
	)

	// Redis components stay nil in memory mode; services treat nil as
	// disabled.
	var (
		cache   *redisrepo.Cache
		pubsub  *redisrepo.AvailabilityPubSub
		limiter *redisrepo.SlidingWindowLimiter
		idem    *redisrepo.IdempotencyStore
	)

	switch cfg.Storage {
	case "memory":
		store := memoryrepo.NewStore()
		ledger = store.Ledger()
		bookings = store.Bookings()
		events = store.Events()
		logger.Info("storage: in-memory, redis disabled")
	default:
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.Name,
			cfg.Postgres.SSLMode,
		)

		pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}

		rdb, err := redis.New(context.Background(), redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}

		store := postgresrepo.NewStore(pgxPool)
		ledger = store.Ledger()
		bookings = store.Bookings()
		events = store.Events()

		cache = redisrepo.NewCache(rdb)
		pubsub = redisrepo.NewAvailabilityPubSub(rdb)
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "rl:bookings", cfg.Booking.RateLimit, time.Minute)
		idem = redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)
	}

	verifier := identity.NewJWTVerifier(cfg.Auth.JWTSecret)

	services := &service.Services{
		Booking: booking.New(ledger, bookings, verifier, cache, pubsub, limiter, logger,
			booking.Config{MaxTicketsPerBooking: cfg.Booking.MaxTickets}),
		Directory: directory.New(events, verifier, cache, pubsub, logger),
		Sweeper: sweeper.New(ledger, bookings, logger, sweeper.Config{
			Interval: cfg.Booking.SweepInterval,
			TTL:      cfg.Booking.TTL,
		}),
	}

	router := httpgin.NewRouter(services, idem, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		sweeper: services.Sweeper,
		cache:   cache,
		pubsub:  pubsub,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Expiry sweeper
	g.Go(func() error {
		if err := a.sweeper.Start(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("sweeper stopped: %w", err)
		}
		return nil
	})

	// Availability change listener: drops cached seat views when another
	// instance mutates the ledger.
	if a.pubsub != nil && a.cache != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID int64) {
				if err := a.cache.InvalidateEvent(ctx, eventID); err != nil {
					a.logger.Warn("cache invalidation from pubsub failed",
						"event_id", eventID, "error", err)
				}
			})
			if err != nil && err != context.Canceled {
				return fmt.Errorf("availability subscriber stopped: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
