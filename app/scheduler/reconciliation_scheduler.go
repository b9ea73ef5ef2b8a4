// Package scheduler runs periodic background jobs
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amirphl/Yata-no-Kagami/app/middleware"
	businessflow "github.com/amirphl/Yata-no-Kagami/business_flow"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

// ReconciliationScheduler periodically reconciles the trailing window of days
type ReconciliationScheduler struct {
	flow         businessflow.ReconciliationFlow
	locker       businessflow.RunLocker
	logger       *logrus.Logger
	interval     time.Duration
	lookbackDays int
	runTimeout   time.Duration
	now          func() time.Time
}

func NewReconciliationScheduler(
	flow businessflow.ReconciliationFlow,
	locker businessflow.RunLocker,
	logger *logrus.Logger,
	interval time.Duration,
	lookbackDays int,
	runTimeout time.Duration,
) *ReconciliationScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	if runTimeout <= 0 {
		runTimeout = utils.DefaultRunTimeout
	}
	return &ReconciliationScheduler{
		flow:         flow,
		locker:       locker,
		logger:       logger,
		interval:     interval,
		lookbackDays: lookbackDays,
		runTimeout:   runTimeout,
		now:          utils.UTCNow,
	}
}

// Start runs once immediately and then on every tick until the returned stop func is called
func (s *ReconciliationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *ReconciliationScheduler) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()

	cfg := businessflow.TrailingWindow(s.now(), s.lookbackDays)
	log := s.logger.WithFields(logrus.Fields{
		"trigger": "scheduler",
		"from":    cfg.From.Format(utils.DateLayout),
		"to":      cfg.To.Format(utils.DateLayout),
	})

	start := time.Now()
	result, err := businessflow.RunExclusive(ctx, s.locker, s.flow, cfg)
	middleware.ObserveReconciliationRun("scheduler", result, err, time.Since(start))
	if err != nil {
		if businessflow.IsRunInProgress(err) {
			log.Info("Skipping scheduled reconciliation, another run is in progress")
			return
		}
		log.WithError(err).Error("Scheduled reconciliation failed")
		return
	}
	log.WithFields(logrus.Fields{
		"run_id":    result.RunID,
		"processed": result.Processed,
		"added":     result.Added,
	}).Info("Scheduled reconciliation completed")
}
