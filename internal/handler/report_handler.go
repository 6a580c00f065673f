package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/subscription"
	"kost-service/pkg/logger"
	"kost-service/prometheus"
)

// Financial report tiers, in ascending order of detail.
const (
	ReportTierBasic      = "basic"
	ReportTierAdvanced   = "advanced"
	ReportTierPredictive = "predictive"
)

// ReportHandler produces financial reports, gated by the financial_reports
// plan feature. The feature value selects the tier: "basic" gives totals,
// "advanced" adds a monthly breakdown, "predictive" adds a naive projection.
type ReportHandler struct {
	db       *gorm.DB
	features *subscription.Resolver
}

// NewReportHandler creates a report handler
func NewReportHandler(db *gorm.DB, features *subscription.Resolver) *ReportHandler {
	return &ReportHandler{db: db, features: features}
}

type monthlyRevenue struct {
	Month    string  `json:"month"`
	Paid     float64 `json:"paid"`
	Pending  float64 `json:"pending"`
	Payments int64   `json:"payments"`
}

// Financial returns the financial report for one owned property
func (h *ReportHandler) Financial(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("report", "financial")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	propertyID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}
	if _, err := ownedProperty(h.db, propertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	features, ferr := h.features.Features(userID)
	if ferr != nil {
		log.Warn("Feature resolution degraded to defaults", zap.Error(ferr))
	}
	if !features.Has(subscription.FeatureFinancialReports) {
		prometheus.RecordRuleViolation("feature_gate")
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":   "financial reports are not included in your plan",
			"feature": subscription.FeatureFinancialReports,
		})
	}
	tier := ReportTierBasic
	if v, isString := features.Value(subscription.FeatureFinancialReports).(string); isString && v != "" {
		tier = v
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var totals struct {
		Collected   float64
		Outstanding float64
		Overdue     float64
	}
	h.db.Model(&model.Payment{}).
		Select("COALESCE(SUM(CASE WHEN status = 'paid' THEN amount ELSE 0 END), 0) AS collected, "+
			"COALESCE(SUM(CASE WHEN status = 'pending' THEN amount ELSE 0 END), 0) AS outstanding, "+
			"COALESCE(SUM(CASE WHEN status = 'overdue' THEN amount ELSE 0 END), 0) AS overdue").
		Where("property_id = ?", propertyID).
		Scan(&totals)

	var occupied, total int64
	h.db.Model(&model.Room{}).Where("property_id = ?", propertyID).Count(&total)
	h.db.Model(&model.Room{}).
		Where("property_id = ? AND status = ?", propertyID, model.RoomOccupied).
		Count(&occupied)

	report := echo.Map{
		"tier":              tier,
		"total_collected":   totals.Collected,
		"total_outstanding": totals.Outstanding,
		"total_overdue":     totals.Overdue,
		"total_rooms":       total,
		"occupied_rooms":    occupied,
	}
	if total > 0 {
		report["occupancy_rate"] = float64(occupied) / float64(total)
	}

	if tier == ReportTierAdvanced || tier == ReportTierPredictive {
		months, err := h.monthlyBreakdown(propertyID)
		if err != nil {
			log.Error("Failed to build monthly breakdown", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build report"})
		}
		report["monthly"] = months

		if tier == ReportTierPredictive {
			report["projected_next_month"] = projectNextMonth(months)
		}
	}

	return c.JSON(http.StatusOK, report)
}

// Export streams the property's payment history as CSV. Gated by the
// data_export plan feature.
func (h *ReportHandler) Export(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("report", "export")

	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	propertyID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property ID"})
	}
	if _, err := ownedProperty(h.db, propertyID, userID); err != nil {
		return respondOwnership(c, err)
	}

	features, ferr := h.features.Features(userID)
	if ferr != nil {
		log.Warn("Feature resolution degraded to defaults", zap.Error(ferr))
	}
	if !features.Has(subscription.FeatureDataExport) {
		prometheus.RecordRuleViolation("feature_gate")
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":   "data export is not included in your plan",
			"feature": subscription.FeatureDataExport,
		})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var payments []model.Payment
	if err := h.db.
		Where("property_id = ?", propertyID).
		Order("due_date ASC").
		Find(&payments).Error; err != nil {
		log.Error("Failed to load payments for export", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to export payments"})
	}

	tenantNames := map[uint]string{}
	var tenants []model.Tenant
	h.db.Select("id, name").Where("property_id = ?", propertyID).Find(&tenants)
	for _, tenant := range tenants {
		tenantNames[tenant.ID] = tenant.Name
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="payments.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	w.Write([]string{"tenant", "amount", "due_date", "paid_date", "status", "method", "notes"})
	for _, payment := range payments {
		paidDate := ""
		if payment.PaidDate != nil {
			paidDate = payment.PaidDate.Format("2006-01-02")
		}
		w.Write([]string{
			tenantNames[payment.TenantID],
			strconv.FormatFloat(payment.Amount, 'f', 2, 64),
			payment.DueDate.Format("2006-01-02"),
			paidDate,
			payment.Status,
			payment.Method,
			payment.Notes,
		})
	}
	w.Flush()
	return w.Error()
}

// monthlyBreakdown aggregates the last twelve months of payments by due month
func (h *ReportHandler) monthlyBreakdown(propertyID uint) ([]monthlyRevenue, error) {
	since := time.Now().AddDate(-1, 0, 0)

	var payments []model.Payment
	err := h.db.
		Where("property_id = ? AND due_date >= ?", propertyID, since).
		Order("due_date ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}

	// Aggregated in Go rather than SQL so the date bucketing works the same
	// on postgres and sqlite.
	index := map[string]*monthlyRevenue{}
	var order []string
	for _, payment := range payments {
		month := payment.DueDate.Format("2006-01")
		bucket, seen := index[month]
		if !seen {
			bucket = &monthlyRevenue{Month: month}
			index[month] = bucket
			order = append(order, month)
		}
		bucket.Payments++
		if payment.Status == model.PaymentPaid {
			bucket.Paid += payment.Amount
		} else {
			bucket.Pending += payment.Amount
		}
	}

	months := make([]monthlyRevenue, 0, len(order))
	for _, month := range order {
		months = append(months, *index[month])
	}
	return months, nil
}

// projectNextMonth averages paid revenue over the last three observed months
func projectNextMonth(months []monthlyRevenue) float64 {
	if len(months) == 0 {
		return 0
	}
	start := len(months) - 3
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, month := range months[start:] {
		sum += month.Paid
	}
	return sum / float64(len(months)-start)
}
