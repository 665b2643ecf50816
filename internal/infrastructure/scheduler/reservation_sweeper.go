package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/motorline/backend/internal/application/reservation"
	"go.uber.org/zap"
)

// ReservationSweeper periodically expires reservations past their deadline,
// returning their stock to availability.
type ReservationSweeper struct {
	manager   *reservation.Manager
	interval  time.Duration
	logger    *zap.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewReservationSweeper creates a new ReservationSweeper
func NewReservationSweeper(manager *reservation.Manager, interval time.Duration, logger *zap.Logger) *ReservationSweeper {
	return &ReservationSweeper{
		manager:  manager,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op.
func (s *ReservationSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("reservation sweeper started", zap.Duration("interval", s.interval))
}

// Stop gracefully stops the sweeper, waiting for an in-flight sweep
func (s *ReservationSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("reservation sweeper stopped")
}

func (s *ReservationSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// An immediate sweep on startup catches holds that expired while the
	// process was down.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ReservationSweeper) sweep(ctx context.Context) {
	if _, err := s.manager.SweepExpired(ctx); err != nil {
		s.logger.Error("reservation sweep run failed", zap.Error(err))
	}
}
