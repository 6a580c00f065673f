package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kost-service/internal/model"
	"kost-service/internal/realtime"
)

func TestMarkPaidSettlesTenant(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	_, tenant := seedOccupancy(t, db, property.ID)

	var payment model.Payment
	assert.NoError(t, db.Where("tenant_id = ?", tenant.ID).First(&payment).Error)

	h := NewPaymentHandler(db, realtime.NewHub())
	c, rec := newAuthedContext(t, http.MethodPost, "/api/payments/1/pay",
		map[string]interface{}{"payment_method": "transfer"}, owner.ID)
	setParamID(c, payment.ID)

	assert.NoError(t, h.MarkPaid(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var settled model.Payment
	assert.NoError(t, db.First(&settled, payment.ID).Error)
	assert.Equal(t, model.PaymentPaid, settled.Status)
	assert.NotNil(t, settled.PaidDate)
	assert.Equal(t, "transfer", settled.Method)

	// The tenant's only payment is settled, so they are paid up
	var paidTenant model.Tenant
	assert.NoError(t, db.First(&paidTenant, tenant.ID).Error)
	assert.Equal(t, model.PaymentPaid, paidTenant.PaymentStatus)
}

func TestMarkPaidKeepsTenantPendingWithOtherDebt(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	room, tenant := seedOccupancy(t, db, property.ID)

	second := model.Payment{
		TenantID:   tenant.ID,
		RoomID:     room.ID,
		PropertyID: property.ID,
		Amount:     1500000,
		DueDate:    time.Now().AddDate(0, 2, 0),
		Status:     model.PaymentPending,
	}
	assert.NoError(t, db.Create(&second).Error)

	var first model.Payment
	assert.NoError(t, db.Where("tenant_id = ? AND id <> ?", tenant.ID, second.ID).First(&first).Error)

	h := NewPaymentHandler(db, realtime.NewHub())
	c, rec := newAuthedContext(t, http.MethodPost, "/api/payments/1/pay", nil, owner.ID)
	setParamID(c, first.ID)

	assert.NoError(t, h.MarkPaid(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var stillPending model.Tenant
	assert.NoError(t, db.First(&stillPending, tenant.ID).Error)
	assert.Equal(t, model.PaymentPending, stillPending.PaymentStatus)
}

func TestMarkPaidRejectsSettledPayment(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	_, tenant := seedOccupancy(t, db, property.ID)

	var payment model.Payment
	assert.NoError(t, db.Where("tenant_id = ?", tenant.ID).First(&payment).Error)
	now := time.Now()
	assert.NoError(t, db.Model(&payment).Updates(map[string]interface{}{
		"status":    model.PaymentPaid,
		"paid_date": now,
	}).Error)

	h := NewPaymentHandler(db, realtime.NewHub())
	c, rec := newAuthedContext(t, http.MethodPost, "/api/payments/1/pay", nil, owner.ID)
	setParamID(c, payment.ID)

	assert.NoError(t, h.MarkPaid(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListRollsPastDuePaymentsToOverdue(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	_, tenant := seedOccupancy(t, db, property.ID)

	// Push the seeded payment into the past
	assert.NoError(t, db.Model(&model.Payment{}).
		Where("tenant_id = ?", tenant.ID).
		Update("due_date", time.Now().AddDate(0, 0, -3)).Error)

	h := NewPaymentHandler(db, realtime.NewHub())
	c, rec := newAuthedContext(t, http.MethodGet, "/api/properties/1/payments", nil, owner.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.ListByProperty(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var rolled model.Payment
	assert.NoError(t, db.Where("tenant_id = ?", tenant.ID).First(&rolled).Error)
	assert.Equal(t, model.PaymentOverdue, rolled.Status)

	var overdueTenant model.Tenant
	assert.NoError(t, db.First(&overdueTenant, tenant.ID).Error)
	assert.Equal(t, model.PaymentOverdue, overdueTenant.PaymentStatus)
}

func TestPaymentCreateRequiresOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestOwner(t, db)
	property := createTestProperty(t, db, owner.ID)
	_, tenant := seedOccupancy(t, db, property.ID)

	intruder := model.User{Name: "Lain", Email: "other@example.com"}
	assert.NoError(t, db.Create(&intruder).Error)

	due := time.Now().AddDate(0, 1, 0).Format(time.RFC3339)
	h := NewPaymentHandler(db, realtime.NewHub())
	c, rec := newAuthedContext(t, http.MethodPost, "/api/properties/1/payments",
		map[string]interface{}{
			"tenant_id": tenant.ID,
			"amount":    500000.0,
			"due_date":  due,
		}, intruder.ID)
	setParamID(c, property.ID)

	assert.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
