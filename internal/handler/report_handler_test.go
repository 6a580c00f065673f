package handler

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/subscription"
)

func newReportHandler(db *gorm.DB) *ReportHandler {
	return NewReportHandler(db, subscription.NewResolver(db))
}

func seedPayments(t *testing.T, db *gorm.DB, propertyID uint) model.Tenant {
	t.Helper()

	tenant := model.Tenant{
		PropertyID: propertyID,
		Name:       "Budi Santoso",
		Email:      "budi@example.com",
		Status:     model.TenantActive,
	}
	assert.NoError(t, db.Create(&tenant).Error)

	due := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	paid := due.AddDate(0, 0, -2)
	for _, payment := range []model.Payment{
		{TenantID: tenant.ID, PropertyID: propertyID, Amount: 1500000, DueDate: due, PaidDate: &paid, Status: model.PaymentPaid},
		{TenantID: tenant.ID, PropertyID: propertyID, Amount: 1500000, DueDate: due.AddDate(0, 1, 0), Status: model.PaymentPending},
		{TenantID: tenant.ID, PropertyID: propertyID, Amount: 750000, DueDate: due.AddDate(0, -1, 0), Status: model.PaymentOverdue},
	} {
		assert.NoError(t, db.Create(&payment).Error)
	}
	return tenant
}

func TestFinancialReportGatedByFeature(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	h := newReportHandler(db)

	c, rec := newAuthedContext(t, http.MethodGet, "/api/properties/1/reports/financial", nil, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.Financial(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFinancialReportBasicTotals(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	seedPayments(t, db, property.ID)
	activatePlan(t, db, owner.ID, 3, 30, datatypes.JSONMap{
		subscription.FeatureFinancialReports: "basic",
	})
	h := newReportHandler(db)

	c, rec := newAuthedContext(t, http.MethodGet, "/api/properties/1/reports/financial", nil, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.Financial(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "basic", body["tier"])
	assert.Equal(t, float64(1500000), body["total_collected"])
	assert.Equal(t, float64(1500000), body["total_outstanding"])
	assert.Equal(t, float64(750000), body["total_overdue"])
	assert.NotContains(t, body, "monthly")
	assert.NotContains(t, body, "projected_next_month")
}

func TestFinancialReportPredictiveAddsProjection(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	seedPayments(t, db, property.ID)
	activatePlan(t, db, owner.ID, 10, 100, datatypes.JSONMap{
		subscription.FeatureFinancialReports: "predictive",
	})
	h := newReportHandler(db)

	c, rec := newAuthedContext(t, http.MethodGet, "/api/properties/1/reports/financial", nil, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.Financial(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "predictive", body["tier"])
	assert.Contains(t, body, "monthly")
	assert.Contains(t, body, "projected_next_month")
}

func TestExportGatedByFeature(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	activatePlan(t, db, owner.ID, 3, 30, datatypes.JSONMap{
		subscription.FeatureFinancialReports: "basic",
	})
	h := newReportHandler(db)

	c, rec := newAuthedContext(t, http.MethodGet, "/api/properties/1/reports/export", nil, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.Export(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportProducesCSV(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	seedPayments(t, db, property.ID)
	activatePlan(t, db, owner.ID, 10, 100, datatypes.JSONMap{
		subscription.FeatureDataExport: true,
	})
	h := newReportHandler(db)

	c, rec := newAuthedContext(t, http.MethodGet, "/api/properties/1/reports/export", nil, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.Export(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, []string{"tenant", "amount", "due_date", "paid_date", "status", "method", "notes"}, rows[0])

	// Ordered by due date: overdue July, paid August, pending September
	assert.Equal(t, "Budi Santoso", rows[1][0])
	assert.Equal(t, "2026-07-01", rows[1][2])
	assert.Equal(t, model.PaymentOverdue, rows[1][4])
	assert.Equal(t, "2026-07-30", rows[2][3])
	assert.Equal(t, model.PaymentPaid, rows[2][4])
	assert.Equal(t, model.PaymentPending, rows[3][4])
}
