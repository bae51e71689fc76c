package jobs

import (
	"context"
	"time"

	"automatch/internal/models"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

type Reconciler interface {
	Reconcile(ctx context.Context) ([]models.BalanceDiscrepancy, error)
}

type PurchaseExpirer interface {
	ExpireStale(ctx context.Context, ttl time.Duration) (int64, error)
}

type Config struct {
	ReconcileSchedule  string
	ExpireSchedule     string
	PurchasePendingTTL time.Duration
}

// Scheduler runs the periodic ledger reconciliation and stale purchase
// expiry. Each run gets its own timeout; a slow run is skipped rather than
// stacked.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	expirer    PurchaseExpirer
	ttl        time.Duration
	log        *zap.Logger
}

func New(cfg Config, reconciler Reconciler, expirer PurchaseExpirer, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		reconciler: reconciler,
		expirer:    expirer,
		ttl:        cfg.PurchasePendingTTL,
		log:        log,
	}
	if _, err := s.cron.AddFunc(cfg.ReconcileSchedule, s.runReconcile); err != nil {
		return nil, errors.Wrapf(err, "schedule reconcile %q", cfg.ReconcileSchedule)
	}
	if _, err := s.cron.AddFunc(cfg.ExpireSchedule, s.runExpire); err != nil {
		return nil, errors.Wrapf(err, "schedule purchase expiry %q", cfg.ExpireSchedule)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduled jobs started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running ones, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduled jobs still running at shutdown")
	}
}

func (s *Scheduler) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.Reconcile(ctx)
}

func (s *Scheduler) runExpire() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.ExpirePurchases(ctx)
}

// Reconcile logs every dealer whose balance drifted from the ledger.
func (s *Scheduler) Reconcile(ctx context.Context) int {
	discrepancies, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.log.Error("reconcile ledger", zap.Error(err))
		return 0
	}
	for _, d := range discrepancies {
		s.log.Error("balance drift",
			zap.String("dealer_id", d.DealerID),
			zap.Int64("stored", d.StoredBalance),
			zap.Int64("ledger", d.CalculatedBalance),
			zap.Int64("difference", d.Difference),
		)
	}
	s.log.Info("reconcile finished", zap.Int("discrepancies", len(discrepancies)))
	return len(discrepancies)
}

func (s *Scheduler) ExpirePurchases(ctx context.Context) int64 {
	expired, err := s.expirer.ExpireStale(ctx, s.ttl)
	if err != nil {
		s.log.Error("expire pending purchases", zap.Error(err))
		return 0
	}
	if expired > 0 {
		s.log.Info("expired pending purchases", zap.Int64("count", expired), zap.Duration("ttl", s.ttl))
	}
	return expired
}
