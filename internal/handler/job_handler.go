package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"kost-service/internal/billing"
	"kost-service/pkg/logger"
)

// JobHandler triggers background jobs. Routes using it sit behind the job
// token middleware, not user authentication.
type JobHandler struct {
	billing *billing.Job
}

// NewJobHandler creates a job handler
func NewJobHandler(billingJob *billing.Job) *JobHandler {
	return &JobHandler{billing: billingJob}
}

// RunBillingReminders runs one billing reminder pass and returns its summary
func (h *JobHandler) RunBillingReminders(c echo.Context) error {
	log := logger.FromContext(c)

	summary := h.billing.Run()
	log.Info("Billing reminder run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)))
	return c.JSON(http.StatusOK, summary)
}
