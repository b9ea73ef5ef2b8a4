package handlers

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/amirphl/Yata-no-Kagami/app/dto"
	"github.com/amirphl/Yata-no-Kagami/app/middleware"
	businessflow "github.com/amirphl/Yata-no-Kagami/business_flow"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

// ReconciliationHandlerInterface defines the reconciliation endpoints
type ReconciliationHandlerInterface interface {
	Run(c fiber.Ctx) error
	Ledger(c fiber.Ctx) error
	Summary(c fiber.Ctx) error
	ExportCSV(c fiber.Ctx) error
	ExportExcel(c fiber.Ctx) error
	UpdateVerification(c fiber.Ctx) error
}

// ReconciliationHandler serves runs, ledger reads and exports
type ReconciliationHandler struct {
	flow       businessflow.ReconciliationFlow
	locker     businessflow.RunLocker
	logger     *logrus.Logger
	validator  *validator.Validate
	runTimeout time.Duration
}

func NewReconciliationHandler(flow businessflow.ReconciliationFlow, locker businessflow.RunLocker, logger *logrus.Logger, runTimeout time.Duration) ReconciliationHandlerInterface {
	if runTimeout <= 0 {
		runTimeout = utils.DefaultRunTimeout
	}
	return &ReconciliationHandler{
		flow:       flow,
		locker:     locker,
		logger:     logger,
		validator:  validator.New(),
		runTimeout: runTimeout,
	}
}

// Run triggers a reconciliation over an optional date window
// @Summary Run reconciliation
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param request body dto.RunReconciliationRequest false "Run options"
// @Success 200 {object} dto.APIResponse{data=dto.ReconciliationResult}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/reconciliation/run [post]
func (h *ReconciliationHandler) Run(c fiber.Ctx) error {
	var req dto.RunReconciliationRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	cfg, err := businessflow.RunConfigFromRequest(req)
	if err != nil {
		return h.flowError(c, err)
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/reconciliation/run", h.runTimeout)
	defer cancel()

	start := time.Now()
	result, err := businessflow.RunExclusive(ctx, h.locker, h.flow, cfg)
	middleware.ObserveReconciliationRun("http", result, err, time.Since(start))
	if err != nil {
		return h.flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Reconciliation completed", result)
}

// Ledger returns every master ledger row with its summary
// @Summary Get master ledger
// @Tags Reconciliation
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.LedgerResponse}
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/reconciliation/ledger [get]
func (h *ReconciliationHandler) Ledger(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/reconciliation/ledger")
	defer cancel()

	rows, err := h.flow.Ledger(ctx)
	if err != nil {
		return h.flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Ledger retrieved", dto.LedgerResponse{
		Rows:    rows,
		Summary: businessflow.Summarize(rows),
	})
}

// Summary returns verification counts over the ledger
// @Summary Get ledger summary
// @Tags Reconciliation
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.LedgerSummary}
// @Router /api/v1/reconciliation/summary [get]
func (h *ReconciliationHandler) Summary(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/reconciliation/summary")
	defer cancel()

	summary, err := h.flow.Summary(ctx)
	if err != nil {
		return h.flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Summary retrieved", summary)
}

// ExportCSV downloads the ledger as CSV
// @Summary Export ledger CSV
// @Tags Reconciliation
// @Produce text/csv
// @Success 200 {string} string "CSV file"
// @Router /api/v1/reconciliation/export.csv [get]
func (h *ReconciliationHandler) ExportCSV(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/reconciliation/export.csv")
	defer cancel()

	data, err := h.flow.ExportCSV(ctx)
	if err != nil {
		return h.flowError(c, err)
	}
	c.Set("Content-Type", "text/csv; charset=utf-8")
	c.Set("Content-Disposition", "attachment; filename="+exportFilename("csv"))
	return c.Send(data)
}

// ExportExcel downloads the ledger as an xlsx workbook
// @Summary Export ledger workbook
// @Tags Reconciliation
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {string} string "XLSX file"
// @Router /api/v1/reconciliation/export.xlsx [get]
func (h *ReconciliationHandler) ExportExcel(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/reconciliation/export.xlsx")
	defer cancel()

	data, err := h.flow.ExportExcel(ctx)
	if err != nil {
		return h.flowError(c, err)
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+exportFilename("xlsx"))
	return c.Send(data)
}

// UpdateVerification sets the verification status of one ledger row
// @Summary Update row verification
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param key path string true "Unique key"
// @Param request body dto.UpdateVerificationRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=models.MasterRow}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/reconciliation/ledger/{key}/verification [patch]
func (h *ReconciliationHandler) UpdateVerification(c fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil || key == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Unique key is required", "UNIQUE_KEY_REQUIRED", nil)
	}

	var req dto.UpdateVerificationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/reconciliation/ledger/:key/verification")
	defer cancel()

	release, err := h.locker.Acquire(ctx)
	if err != nil {
		return h.flowError(c, err)
	}
	defer release()

	row, err := h.flow.SetVerificationStatus(ctx, key, req.VerificationStatus)
	if err != nil {
		return h.flowError(c, err)
	}
	return successResponse(c, fiber.StatusOK, "Verification status updated", row)
}

func (h *ReconciliationHandler) flowError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsRunInProgress(err):
		return errorResponse(c, fiber.StatusConflict, "A reconciliation run is already in progress", "RUN_IN_PROGRESS", nil)
	case businessflow.IsInvalidDateRange(err):
		return errorResponse(c, fiber.StatusBadRequest, "From date cannot be after to date", "INVALID_DATE_RANGE", nil)
	case businessflow.IsInvalidVerificationStatus(err):
		return errorResponse(c, fiber.StatusBadRequest, "Invalid verification status", "INVALID_VERIFICATION_STATUS", nil)
	case businessflow.IsLedgerRowNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Ledger row not found", "LEDGER_ROW_NOT_FOUND", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return errorResponse(c, fiber.StatusGatewayTimeout, "Request timed out", "TIMEOUT", nil)
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		status := fiber.StatusInternalServerError
		switch be.Code {
		case "INVALID_FROM_DATE", "INVALID_TO_DATE", "UNIQUE_KEY_REQUIRED":
			status = fiber.StatusBadRequest
		}
		h.logger.WithError(err).WithField("code", be.Code).Error("Reconciliation request failed")
		return errorResponse(c, status, be.Message, be.Code, nil)
	}

	h.logger.WithError(err).Error("Reconciliation request failed")
	return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
}

func (h *ReconciliationHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *ReconciliationHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func exportFilename(ext string) string {
	return "master_ledger_" + utils.UTCNow().Format("20060102") + "." + ext
}
