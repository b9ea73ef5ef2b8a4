package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/Yata-no-Kagami/app/dto"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

const RequestIDKey = "X-Request-ID"

// RunConfigFromRequest converts a run request into a RunConfig. Dates are calendar days in UTC.
func RunConfigFromRequest(req dto.RunReconciliationRequest) (RunConfig, error) {
	cfg := RunConfig{
		ForceReverify: req.ForceReverify,
		ClearExisting: req.ClearExisting,
	}
	var err error
	if cfg.From, err = parseDay(req.FromDate); err != nil {
		return RunConfig{}, NewBusinessError("INVALID_FROM_DATE", "Invalid from date", err)
	}
	if cfg.To, err = parseDay(req.ToDate); err != nil {
		return RunConfig{}, NewBusinessError("INVALID_TO_DATE", "Invalid to date", err)
	}
	if cfg.From != nil && cfg.To != nil && cfg.From.After(*cfg.To) {
		return RunConfig{}, NewBusinessError("INVALID_DATE_RANGE", "Invalid date range", ErrInvalidDateRange)
	}
	return cfg, nil
}

// TrailingWindow returns a RunConfig covering the last days calendar days up to now
func TrailingWindow(now time.Time, days int) RunConfig {
	to := utils.StartOfDay(now)
	from := to.AddDate(0, 0, -days)
	return RunConfig{From: &from, To: &to}
}

// RunExclusive runs one reconciliation while holding the run lock
func RunExclusive(ctx context.Context, locker RunLocker, flow ReconciliationFlow, cfg RunConfig) (*dto.ReconciliationResult, error) {
	release, err := locker.Acquire(ctx)
	if err != nil {
		if IsRunInProgress(err) {
			return nil, NewBusinessError("RUN_IN_PROGRESS", "A reconciliation run is already in progress", err)
		}
		return nil, NewBusinessError("RUN_LOCK_FAILED", "Failed to acquire run lock", err)
	}
	defer release()
	return flow.Reconcile(ctx, cfg)
}

func parseDay(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(utils.DateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
