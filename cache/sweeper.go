package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fabfab/billchat/logging"
)

const (
	DefaultSweepInterval = 24 * time.Hour
	DefaultRetention     = 7 * 24 * time.Hour
)

// Sweeper periodically removes stale entries from a gateway.
type Sweeper struct {
	gateway   Gateway
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(gateway Gateway, interval, retention time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Sweeper{
		gateway:   gateway,
		interval:  interval,
		retention: retention,
		logger:    logging.OrNop(logger),
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a
// no-op. The loop ends when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.logger.Info("cache sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention),
	)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("cache sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Failures are logged and returned.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	removed, err := s.gateway.Sweep(ctx, s.retention)
	if err != nil {
		s.logger.Error("cache sweep failed", zap.Error(err))
		return 0, err
	}
	s.logger.Info("cache sweep completed", zap.Int64("removed", removed))
	return removed, nil
}
