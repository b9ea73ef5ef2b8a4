package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/amirphl/Yata-no-Kagami/app/dto"
	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/repository"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

// RunConfig controls one reconciliation run. Nil bounds are open.
type RunConfig struct {
	From          *time.Time
	To            *time.Time
	ForceReverify bool
	// ClearExisting discards the persisted ledger and rebuilds it from the window
	ClearExisting bool
}

// ReconciliationFlow handles reconciliation runs and reads of the master ledger
type ReconciliationFlow interface {
	Reconcile(ctx context.Context, cfg RunConfig) (*dto.ReconciliationResult, error)
	Ledger(ctx context.Context) ([]models.MasterRow, error)
	Summary(ctx context.Context) (*dto.LedgerSummary, error)
	SetVerificationStatus(ctx context.Context, uniqueKey, status string) (*models.MasterRow, error)
	ExportCSV(ctx context.Context) ([]byte, error)
	ExportExcel(ctx context.Context) ([]byte, error)
}

// ReconciliationFlowImpl implements ReconciliationFlow. It holds no state between runs.
type ReconciliationFlowImpl struct {
	inputs repository.InputRepository
	ledger repository.LedgerRepository
	logger *logrus.Logger
}

// NewReconciliationFlow creates a new reconciliation flow instance
func NewReconciliationFlow(inputs repository.InputRepository, ledger repository.LedgerRepository, logger *logrus.Logger) ReconciliationFlow {
	return &ReconciliationFlowImpl{
		inputs: inputs,
		ledger: ledger,
		logger: logger,
	}
}

type loadedInputs struct {
	attendance      []models.AttendanceRecord
	payments        []models.PaymentRecord
	rules           []models.PricingRule
	discounts       []models.Discount
	rulesBackfilled bool
}

// Reconcile matches the attendance of the window against payments and rules and upserts the ledger
func (f *ReconciliationFlowImpl) Reconcile(ctx context.Context, cfg RunConfig) (result *dto.ReconciliationResult, err error) {
	start := time.Now()
	runID := uuid.NewString()
	log := f.logger.WithFields(logrus.Fields{
		"run_id":         runID,
		"force_reverify": cfg.ForceReverify,
		"clear_existing": cfg.ClearExisting,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Reconciliation run aborted")
			result = nil
			err = NewBusinessError("RECONCILIATION_FAILED", "reconciliation failed", fmt.Errorf("%w: %v", ErrReconciliationFailed, r))
		}
	}()

	if cfg.From != nil && cfg.To != nil && utils.StartOfDay(*cfg.From).After(utils.StartOfDay(*cfg.To)) {
		return nil, NewBusinessError("INVALID_DATE_RANGE", "Invalid date range", ErrInvalidDateRange)
	}

	// Loading
	in, err := f.loadInputs(ctx, log)
	if err != nil {
		return nil, NewBusinessError("RECONCILIATION_FAILED", "reconciliation failed", err)
	}

	// Filtering
	window := RunInputs{
		Attendance: FilterAttendance(in.attendance, cfg.From, cfg.To),
		Payments:   FilterPayments(in.payments, cfg.From, cfg.To),
		Rules:      in.rules,
		Discounts:  in.discounts,
	}

	existing := []models.MasterRow{}
	if !cfg.ClearExisting {
		rows, err := f.ledger.List(ctx)
		if err != nil {
			log.WithError(err).Warn("No existing ledger data, starting fresh")
		} else {
			existing = rows
		}
	}

	// Matching and computing
	outcome := ReconcileLedger(existing, window, cfg.ForceReverify)

	// Upserting
	persisted := false
	if outcome.Changed || cfg.ForceReverify || cfg.ClearExisting {
		if err := f.ledger.ReplaceAll(ctx, outcome.Rows); err != nil {
			log.WithError(err).Error("Failed to persist master ledger")
			return nil, NewBusinessError("LEDGER_WRITE_FAILED", "reconciliation failed", fmt.Errorf("%w: %w", ErrLedgerWriteFailed, err))
		}
		persisted = true
	}

	result = &dto.ReconciliationResult{
		RunID:           runID,
		AttendanceRead:  len(in.attendance),
		PaymentsRead:    len(in.payments),
		InWindow:        len(window.Attendance),
		Processed:       outcome.Processed,
		Skipped:         outcome.Skipped,
		Added:           outcome.Added,
		Updated:         outcome.Updated,
		Persisted:       persisted,
		RulesBackfilled: in.rulesBackfilled,
		Summary:         Summarize(outcome.Rows),
		DurationMillis:  time.Since(start).Milliseconds(),
	}

	log.WithFields(logrus.Fields{
		"processed":         result.Processed,
		"skipped":           result.Skipped,
		"added":             result.Added,
		"updated":           result.Updated,
		"persisted":         result.Persisted,
		"verification_rate": result.Summary.VerificationRate,
	}).Info("Reconciliation run completed")

	return result, nil
}

// loadInputs reads the four inputs concurrently. A failed read leaves that input empty.
func (f *ReconciliationFlowImpl) loadInputs(ctx context.Context, log *logrus.Entry) (*loadedInputs, error) {
	in := &loadedInputs{}
	var ruleTable *repository.RuleTable

	var g errgroup.Group
	g.Go(recovered(func() error {
		records, err := f.inputs.Attendance(ctx)
		if err != nil {
			log.WithError(err).Warn("Attendance unavailable, continuing with none")
			return nil
		}
		in.attendance = records
		return nil
	}))
	g.Go(recovered(func() error {
		records, err := f.inputs.Payments(ctx)
		if err != nil {
			log.WithError(err).Warn("Payments unavailable, continuing with none")
			return nil
		}
		in.payments = records
		return nil
	}))
	g.Go(recovered(func() error {
		table, err := f.inputs.Rules(ctx)
		if err != nil {
			log.WithError(err).Warn("Pricing rules unavailable, continuing with none")
			return nil
		}
		ruleTable = table
		return nil
	}))
	g.Go(recovered(func() error {
		records, err := f.inputs.Discounts(ctx)
		if err != nil {
			log.WithError(err).Warn("Discounts unavailable, continuing with none")
			return nil
		}
		in.discounts = records
		return nil
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ruleTable != nil {
		if ruleTable.MissingAliases && len(ruleTable.Rules) > 0 {
			if err := f.inputs.BackfillRuleAliases(ctx, ruleTable); err != nil {
				log.WithError(err).Warn("Failed to persist rule alias backfill, using in-memory aliases")
			} else {
				in.rulesBackfilled = true
			}
		}
		in.rules = NormalizeRules(ruleTable.Rules)
	}

	log.WithFields(logrus.Fields{
		"attendance": len(in.attendance),
		"payments":   len(in.payments),
		"rules":      len(in.rules),
		"discounts":  len(in.discounts),
	}).Debug("Reconciliation inputs loaded")

	return in, nil
}

// recovered turns a panic in a loader goroutine into an error returned by Wait
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrReconciliationFailed, r)
			}
		}()
		return fn()
	}
}

// Ledger returns the persisted master ledger
func (f *ReconciliationFlowImpl) Ledger(ctx context.Context) ([]models.MasterRow, error) {
	rows, err := f.ledger.List(ctx)
	if err != nil {
		return nil, NewBusinessError("LEDGER_UNAVAILABLE", "Failed to read master ledger", fmt.Errorf("%w: %w", ErrLedgerUnavailable, err))
	}
	return rows, nil
}

// Summary aggregates verification counts over the persisted ledger
func (f *ReconciliationFlowImpl) Summary(ctx context.Context) (*dto.LedgerSummary, error) {
	rows, err := f.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	summary := Summarize(rows)
	return &summary, nil
}

// SetVerificationStatus overrides the verification status of one ledger row
func (f *ReconciliationFlowImpl) SetVerificationStatus(ctx context.Context, uniqueKey, status string) (*models.MasterRow, error) {
	uniqueKey = strings.TrimSpace(uniqueKey)
	if uniqueKey == "" {
		return nil, NewBusinessError("UNIQUE_KEY_REQUIRED", "Unique key is required", ErrUniqueKeyRequired)
	}
	if !models.IsValidVerificationStatus(status) {
		return nil, NewBusinessError("INVALID_VERIFICATION_STATUS", "Invalid verification status", ErrInvalidVerificationStatus)
	}

	rows, err := f.Ledger(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range rows {
		if rows[i].UniqueKey == uniqueKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, NewBusinessErrorf("LEDGER_ROW_NOT_FOUND", "Ledger row %s not found", ErrLedgerRowNotFound, uniqueKey)
	}

	if rows[idx].VerificationStatus != status {
		rows[idx].VerificationStatus = status
		if err := f.ledger.ReplaceAll(ctx, rows); err != nil {
			return nil, NewBusinessError("LEDGER_WRITE_FAILED", "Failed to update ledger row", fmt.Errorf("%w: %w", ErrLedgerWriteFailed, err))
		}
		f.logger.WithFields(logrus.Fields{
			"unique_key":          uniqueKey,
			"verification_status": status,
		}).Info("Ledger row verification updated")
	}

	row := rows[idx]
	return &row, nil
}

// ExportCSV renders the ledger as CSV in export column order
func (f *ReconciliationFlowImpl) ExportCSV(ctx context.Context) ([]byte, error) {
	rows, err := f.Ledger(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(repository.ExportColumns); err != nil {
		return nil, NewBusinessError("EXPORT_FAILED", "Failed to export ledger", fmt.Errorf("%w: %w", ErrExportFailed, err))
	}
	if err := w.WriteAll(repository.ExportRecords(rows)); err != nil {
		return nil, NewBusinessError("EXPORT_FAILED", "Failed to export ledger", fmt.Errorf("%w: %w", ErrExportFailed, err))
	}
	return buf.Bytes(), nil
}

// ExportExcel renders the ledger as a single-sheet workbook in export column order
func (f *ReconciliationFlowImpl) ExportExcel(ctx context.Context) ([]byte, error) {
	rows, err := f.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	data, err := repository.ExportWorkbook("Master", repository.ExportColumns, repository.ExportRecords(rows))
	if err != nil {
		return nil, NewBusinessError("EXPORT_FAILED", "Failed to export ledger", fmt.Errorf("%w: %w", ErrExportFailed, err))
	}
	return data, nil
}
