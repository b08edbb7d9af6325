package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/inkwave/commerce-api/internal/service"
)

// Sweeper runs the periodic housekeeping loop: stale pending orders are
// failed, lapsed voucher holds are released, the hosted catalog is re-synced
// and a ledger snapshot is exported once a day.
type Sweeper struct {
	order    *service.OrderService
	catalog  *service.CatalogService
	ledger   *service.LedgerService
	storage  *service.StorageService
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger

	mu           sync.Mutex
	lastSnapshot time.Time
}

// Config holds sweeper configuration.
type Config struct {
	Interval time.Duration
}

// New creates a new sweeper.
func New(
	order *service.OrderService,
	catalog *service.CatalogService,
	ledger *service.LedgerService,
	storage *service.StorageService,
	cfg Config,
	logger *slog.Logger,
) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		order:    order,
		catalog:  catalog,
		ledger:   ledger,
		storage:  storage,
		interval: cfg.Interval,
		stop:     make(chan struct{}),
		logger:   logger.With("component", "sweeper"),
	}
}

// Start begins the housekeeping loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("starting", "interval", s.interval)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.logger.Info("stopping")
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single housekeeping pass.
func (s *Sweeper) RunOnce(ctx context.Context) {
	swept, err := s.order.SweepStale(ctx)
	if err != nil {
		s.logger.Error("order sweep failed", "error", err)
	} else if swept > 0 {
		s.logger.Info("stale orders swept", "count", swept)
	}

	if err := s.catalog.RefreshFromStorage(ctx); err != nil {
		s.logger.Error("catalog refresh failed", "error", err)
	}

	s.maybeSnapshot(ctx)
}

// maybeSnapshot exports a ledger snapshot at most once a day.
func (s *Sweeper) maybeSnapshot(ctx context.Context) {
	if s.storage == nil || !s.storage.IsEnabled() {
		return
	}

	s.mu.Lock()
	due := time.Since(s.lastSnapshot) >= 24*time.Hour
	if due {
		s.lastSnapshot = time.Now().UTC()
	}
	s.mu.Unlock()
	if !due {
		return
	}

	stats, err := s.ledger.GetStats(ctx)
	if err != nil {
		s.logger.Error("snapshot stats failed", "error", err)
		return
	}
	key, err := s.storage.ExportLedgerSnapshot(ctx, &service.LedgerSnapshot{
		TakenAt: time.Now().UTC(),
		Stats:   stats,
	})
	if err != nil {
		s.logger.Error("ledger snapshot failed", "error", err)
		return
	}
	s.logger.Info("ledger snapshot exported", "key", key)
}
