package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/repository"
	testingutil "github.com/amirphl/Yata-no-Kagami/testing"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFlow(f *testingutil.TestFixtures) ReconciliationFlow {
	return NewReconciliationFlow(f.InputRepository(), f.LedgerRepository(), quietLogger())
}

func kaiaFixtures() *testingutil.TestFixtures {
	f := testingutil.NewTestFixtures()
	f.AddRule(testingutil.GroupRule())
	f.AddAttendance(testingutil.Attendance{
		Customer:    "Kaia Attard",
		StartsAt:    "2024-03-01T10:00:00Z",
		Membership:  "Junior Single - Pay As You Go",
		Offering:    "KIDS COMBAT",
		Instructors: "Sam",
	})
	f.AddAttendance(testingutil.Attendance{
		Customer:    "Kaia Attard",
		StartsAt:    "2024-03-08T10:00:00Z",
		Membership:  "Junior Single - Pay As You Go",
		Offering:    "KIDS COMBAT",
		Instructors: "Sam",
	})
	f.AddAttendance(testingutil.Attendance{
		Customer:    "Noah Borg",
		StartsAt:    "2024-03-02T17:00:00Z",
		Membership:  "Junior 5 Pack - Pay As You Go",
		Offering:    "KIDS COMBAT",
		Instructors: "Alex",
	})
	f.AddPayment(testingutil.Payment{
		Date:     "2024-03-01",
		Customer: "Kaia Attard",
		Memo:     "Junior Single - Pay as You Go",
		Amount:   15,
		Invoice:  "INV-1",
	})
	f.AddPayment(testingutil.Payment{
		Date:     "2024-03-08",
		Customer: "Kaia Attard",
		Memo:     "Junior Single - Pay as You Go discount",
		Amount:   7.5,
		Invoice:  "INV-2",
	})
	f.AddDiscount(testingutil.Discount{Code: "discount", Percentage: 50, PayType: "partial"})
	return f
}

func ledgerByKey(t *testing.T, f *testingutil.TestFixtures) map[string]models.MasterRow {
	rows, err := f.LedgerRepository().List(context.Background())
	require.NoError(t, err)
	out := make(map[string]models.MasterRow, len(rows))
	for _, r := range rows {
		out[r.UniqueKey] = r
	}
	return out
}

func TestReconcileScenarios(t *testing.T) {
	f := kaiaFixtures()
	f.Save(true)
	flow := newFlow(f)

	result, err := flow.Reconcile(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.AttendanceRead)
	assert.Equal(t, 2, result.PaymentsRead)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.Added)
	assert.True(t, result.Persisted)
	assert.False(t, result.RulesBackfilled)
	assert.Equal(t, 2, result.Summary.VerifiedRows)
	assert.Equal(t, 66.67, result.Summary.VerificationRate)
	assert.NotEmpty(t, result.RunID)

	ledger := ledgerByKey(t, f)
	require.Len(t, ledger, 3)

	paid := ledger["2024_03_01T10_00_00Z_Kaia_Attard_Junior_Single_Pay_As_You_Go_Sam"]
	assert.Equal(t, models.VerificationStatusVerified, paid.VerificationStatus)
	assert.Equal(t, 15.0, paid.SessionPrice)
	assert.Equal(t, 6.53, paid.CoachAmount)
	assert.Equal(t, 4.5, paid.BGMAmount)
	assert.Equal(t, 1.28, paid.ManagementAmount)
	assert.Equal(t, 2.7, paid.MFCAmount)
	assert.Equal(t, "Junior Single PAYG", paid.RuleName)
	assert.Equal(t, 15.0, paid.PackagePrice)

	discounted := ledger["2024_03_08T10_00_00Z_Kaia_Attard_Junior_Single_Pay_As_You_Go_Sam"]
	assert.Equal(t, models.VerificationStatusVerified, discounted.VerificationStatus)
	assert.Equal(t, "INV-2", discounted.InvoiceNumber)
	assert.Equal(t, 15.0, discounted.SessionPrice)
	assert.Equal(t, 15.0, discounted.PackagePrice)
	assert.Equal(t, 7.5, discounted.DiscountedSessionPrice)
	assert.Equal(t, 3.26, discounted.CoachAmount)
	assert.Equal(t, 50.0, discounted.DiscountPercentage)

	unpaid := ledger["2024_03_02T17_00_00Z_Noah_Borg_Junior_5_Pack_Pay_As_You_Go_Alex"]
	assert.Equal(t, models.VerificationStatusNotVerified, unpaid.VerificationStatus)
	assert.Equal(t, 0.0, unpaid.Amount)
}

func TestReconcileAliasMatchIgnoresCase(t *testing.T) {
	f := testingutil.NewTestFixtures()
	f.AddRule(testingutil.Rule{
		Name:        "Five Pack",
		Package:     "Junior Five",
		SessionType: "group",
		UnitPrice:   13,
		Coach:       50,
		BGM:         30,
		Management:  10,
		MFC:         10,
		Alias:       "junior 5 pack - pay as you go",
	})
	f.AddAttendance(testingutil.Attendance{
		Customer:   "Noah Borg",
		StartsAt:   "2024-03-02T17:00:00Z",
		Membership: "Junior 5 Pack - Pay As You Go",
		Offering:   "KIDS COMBAT",
	})
	f.Save(true)

	_, err := newFlow(f).Reconcile(context.Background(), RunConfig{})
	require.NoError(t, err)

	rows, err := f.LedgerRepository().List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Five Pack", rows[0].RuleName)
	assert.Equal(t, 13.0, rows[0].SessionPrice)
	assert.Equal(t, 6.5, rows[0].CoachAmount)
}

func TestReconcileSkipsKnownRows(t *testing.T) {
	f := kaiaFixtures()
	store := f.Save(true)
	flow := newFlow(f)
	ctx := context.Background()

	_, err := flow.Reconcile(ctx, RunConfig{})
	require.NoError(t, err)
	require.Equal(t, 1, store.Writes(f.Names.Master))

	second, err := flow.Reconcile(ctx, RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 3, second.Skipped)
	assert.False(t, second.Persisted)
	assert.Equal(t, 1, store.Writes(f.Names.Master), "unchanged ledger is not rewritten")
}

func TestReconcileIdempotentUnderForceReverify(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 2024} {
		f := testingutil.RandomFixtures(seed, 80)
		f.Save(true)
		flow := newFlow(f)
		ctx := context.Background()
		cfg := RunConfig{ForceReverify: true}

		_, err := flow.Reconcile(ctx, cfg)
		require.NoError(t, err)
		first, err := flow.Ledger(ctx)
		require.NoError(t, err)

		result, err := flow.Reconcile(ctx, cfg)
		require.NoError(t, err)
		second, err := flow.Ledger(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second, "seed %d", seed)
		assert.Zero(t, result.Added, "seed %d", seed)
		assert.Zero(t, result.Updated, "seed %d", seed)

		for _, row := range second {
			if row.DiscountName == "" {
				continue
			}
			assert.GreaterOrEqual(t, row.SessionPrice, row.DiscountedSessionPrice, "seed %d key %s", seed, row.UniqueKey)
		}
	}
}

func TestReconcileDateWindow(t *testing.T) {
	f := kaiaFixtures()
	f.Save(true)
	flow := newFlow(f)

	from := testingutil.MustParseDay("2024-03-01")
	to := testingutil.MustParseDay("2024-03-02")
	result, err := flow.Reconcile(context.Background(), RunConfig{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, result.InWindow)
	assert.Equal(t, 2, result.Summary.TotalRows)

	_, err = flow.Reconcile(context.Background(), RunConfig{From: &to, To: &from})
	require.Error(t, err)
	assert.True(t, IsInvalidDateRange(err))
}

func TestReconcileClearExisting(t *testing.T) {
	f := kaiaFixtures()
	f.Save(true)
	flow := newFlow(f)
	ctx := context.Background()

	_, err := flow.Reconcile(ctx, RunConfig{})
	require.NoError(t, err)

	day := testingutil.MustParseDay("2024-03-01")
	result, err := flow.Reconcile(ctx, RunConfig{From: &day, To: &day, ClearExisting: true})
	require.NoError(t, err)
	assert.True(t, result.Persisted)

	rows, err := flow.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-1", rows[0].InvoiceNumber)
}

func TestReconcileBackfillsRuleAliases(t *testing.T) {
	f := kaiaFixtures()
	store := f.Save(false)

	result, err := newFlow(f).Reconcile(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.True(t, result.RulesBackfilled)

	rules := store.Table(f.Names.Rules)
	require.NotNil(t, rules)
	assert.True(t, rules.HasColumn(repository.AttendanceAliasColumn))
	assert.True(t, rules.HasColumn(repository.PaymentMemoAliasColumn))
	require.Len(t, rules.Rows, 1)
	assert.Equal(t, "Junior Single - Pay As You Go", rules.Rows[0][repository.AttendanceAliasColumn])
	assert.Equal(t, 2, result.Summary.VerifiedRows)
}

func TestReconcileBackfillFailureIsNotFatal(t *testing.T) {
	f := kaiaFixtures()
	store := f.Save(false)
	store.FailWrite(f.Names.Rules, errors.New("read only"))

	result, err := newFlow(f).Reconcile(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.False(t, result.RulesBackfilled)
	assert.Equal(t, 2, result.Summary.VerifiedRows)
}

func TestReconcileDegradesOnMissingInputs(t *testing.T) {
	f := kaiaFixtures()
	store := f.Save(true)
	store.FailRead(f.Names.Payments, errors.New("payments sheet locked"))
	store.FailRead(f.Names.Discounts, errors.New("discounts sheet locked"))

	result, err := newFlow(f).Reconcile(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.PaymentsRead)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, result.Summary.VerifiedRows)

	for _, row := range ledgerByKey(t, f) {
		assert.Equal(t, models.VerificationStatusNotVerified, row.VerificationStatus)
		assert.Equal(t, 0.0, row.Amount)
	}
}

func TestReconcileLedgerReadFailureStartsFresh(t *testing.T) {
	f := kaiaFixtures()
	store := f.Save(true)
	store.Put(f.Names.Master, repository.MasterColumns, nil)
	store.FailRead(f.Names.Master, errors.New("corrupt"))

	result, err := newFlow(f).Reconcile(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
}

func TestReconcileWriteFailure(t *testing.T) {
	f := kaiaFixtures()
	store := f.Save(true)
	store.FailWrite(f.Names.Master, errors.New("disk full"))

	result, err := newFlow(f).Reconcile(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsLedgerWriteFailed(err))

	var bizErr *BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, "LEDGER_WRITE_FAILED", bizErr.Code)
	assert.Nil(t, store.Table(f.Names.Master), "nothing was persisted")
}

type panickingInputs struct {
	repository.InputRepository
}

func (panickingInputs) Attendance(context.Context) ([]models.AttendanceRecord, error) {
	panic("boom")
}

func TestReconcileRecoversFromPanics(t *testing.T) {
	f := kaiaFixtures()
	f.Save(true)
	flow := NewReconciliationFlow(panickingInputs{f.InputRepository()}, f.LedgerRepository(), quietLogger())

	result, err := flow.Reconcile(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsReconciliationFailed(err))
}

func TestSetVerificationStatus(t *testing.T) {
	f := kaiaFixtures()
	f.Save(true)
	flow := newFlow(f)
	ctx := context.Background()

	_, err := flow.Reconcile(ctx, RunConfig{})
	require.NoError(t, err)

	key := "2024_03_02T17_00_00Z_Noah_Borg_Junior_5_Pack_Pay_As_You_Go_Alex"
	row, err := flow.SetVerificationStatus(ctx, key, models.VerificationStatusVerified)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusVerified, row.VerificationStatus)

	summary, err := flow.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.VerifiedRows)
	assert.Equal(t, 100.0, summary.VerificationRate)

	// a normal run keeps the manual override
	_, err = flow.Reconcile(ctx, RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusVerified, ledgerByKey(t, f)[key].VerificationStatus)

	_, err = flow.SetVerificationStatus(ctx, "missing", models.VerificationStatusVerified)
	assert.True(t, IsLedgerRowNotFound(err))
	var businessErr *BusinessError
	require.ErrorAs(t, err, &businessErr)
	assert.Equal(t, "LEDGER_ROW_NOT_FOUND", businessErr.Code)
	assert.Equal(t, "Ledger row missing not found", businessErr.Message)

	_, err = flow.SetVerificationStatus(ctx, key, "Maybe")
	assert.True(t, IsInvalidVerificationStatus(err))

	_, err = flow.SetVerificationStatus(ctx, "  ", models.VerificationStatusVerified)
	assert.ErrorIs(t, err, ErrUniqueKeyRequired)
}

func TestExports(t *testing.T) {
	f := kaiaFixtures()
	f.Save(true)
	flow := newFlow(f)
	ctx := context.Background()

	_, err := flow.Reconcile(ctx, RunConfig{})
	require.NoError(t, err)

	t.Run("csv", func(t *testing.T) {
		data, err := flow.ExportCSV(ctx)
		require.NoError(t, err)

		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, repository.ExportColumns, records[0])
		assert.Equal(t, "Kaia Attard", records[1][0])
	})

	t.Run("excel", func(t *testing.T) {
		data, err := flow.ExportExcel(ctx)
		require.NoError(t, err)

		xl, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer xl.Close()

		rows, err := xl.GetRows("Master")
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, repository.ExportColumns, rows[0])
	})

	t.Run("empty ledger", func(t *testing.T) {
		empty := testingutil.NewTestFixtures()
		data, err := newFlow(empty).ExportCSV(ctx)
		require.NoError(t, err)
		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestLedgerUnavailable(t *testing.T) {
	f := testingutil.NewTestFixtures()
	f.Store.FailRead(f.Names.Master, errors.New("offline"))

	_, err := newFlow(f).Summary(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
}

func TestRunExclusive(t *testing.T) {
	f := kaiaFixtures()
	f.Save(true)
	flow := newFlow(f)
	locker := NewLocalRunLocker()

	release, err := locker.Acquire(context.Background())
	require.NoError(t, err)

	_, err = RunExclusive(context.Background(), locker, flow, RunConfig{})
	require.Error(t, err)
	assert.True(t, IsRunInProgress(err))

	release()
	release()

	result, err := RunExclusive(context.Background(), locker, flow, RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
}

func TestTrailingWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	cfg := TrailingWindow(now, 7)
	require.NotNil(t, cfg.From)
	require.NotNil(t, cfg.To)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *cfg.From)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *cfg.To)
	assert.False(t, cfg.ForceReverify)
}
