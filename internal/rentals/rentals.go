// Package rentals closes rental orders whose period is over and returns the
// rented accounts to the market.
package rentals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/market"
	"github.com/andymarkow/accountmart/internal/storage"
)

// SystemUserID identifies the sweeper in logs and ledger audit trails.
const SystemUserID = "system:rental-sweeper"

type Sweeper struct {
	log      *slog.Logger
	engine   *market.Engine
	lc       market.LedgerContext
	schedule string
	poolSize int
}

type Config struct {
	logger   *slog.Logger
	schedule string
	poolSize int
}

type Option func(c *Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithSchedule sets the cron expression, e.g. "@every 1m" or "*/5 * * * *".
func WithSchedule(schedule string) Option {
	return func(c *Config) {
		c.schedule = schedule
	}
}

func WithPoolSize(size int) Option {
	return func(c *Config) {
		c.poolSize = size
	}
}

func New(store storage.Storage, engine *market.Engine, opts ...Option) *Sweeper {
	cfg := &Config{
		logger:   slog.New(slog.DiscardHandler),
		schedule: "@every 1m",
		poolSize: 4,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Sweeper{
		log:      cfg.logger.With(slog.String("module", "rentals")),
		engine:   engine,
		lc:       market.NewLedgerContext(store, users.Identity{UserID: SystemUserID, Role: users.RoleAdmin}),
		schedule: cfg.schedule,
		poolSize: max(cfg.poolSize, 1),
	}
}

// Run sweeps on schedule until ctx is done. A sweep in flight is allowed to
// finish before Run returns.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("sweeper.Sweep", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.log.Info("Start rental sweeper", slog.String("schedule", s.schedule))

	c.Start()

	<-ctx.Done()

	s.log.Info("Context done, stopping rental sweeper")

	<-c.Stop().Done()

	return nil
}

// Sweep completes every expired rental once and reports how many orders it
// closed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.engine.ExpiredRentals(ctx, s.lc)
	if err != nil {
		return 0, fmt.Errorf("engine.ExpiredRentals: %w", err)
	}

	if len(ids) == 0 {
		s.log.Debug("No expired rentals")

		return 0, nil
	}

	s.log.Info("Expired rentals found", slog.Int("count", len(ids)))

	return s.complete(ctx, orderGenerator(ctx, ids)), nil
}

func orderGenerator(ctx context.Context, ids []string) <-chan string {
	idsCh := make(chan string)

	go func() {
		defer close(idsCh)

		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case idsCh <- id:
			}
		}
	}()

	return idsCh
}

func (s *Sweeper) complete(ctx context.Context, idsCh <-chan string) int {
	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)

	for range s.poolSize {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for id := range idsCh {
				if s.completeOne(ctx, id) {
					done.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	return int(done.Load())
}

func (s *Sweeper) completeOne(ctx context.Context, orderID string) bool {
	err := s.engine.CompleteRental(ctx, s.lc, orderID)

	switch {
	case err == nil:
		s.log.Info("Rental completed", slog.String("order_id", orderID))

		return true

	case errors.Is(err, market.ErrAlreadyProcessed), errors.Is(err, market.ErrNotFound):
		// Reclaimed or cancelled between listing and completion.
		s.log.Info("Rental already closed", slog.String("order_id", orderID))

	default:
		s.log.Error("engine.CompleteRental", slog.String("order_id", orderID), slog.Any("error", err))
	}

	return false
}
