package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/realtime"
	"kost-service/pkg/mailer"
)

type recordingMailer struct {
	sent []string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, to)
	return nil
}

type failingMailer struct{}

func (failingMailer) Send(to, subject, body string) error {
	return errors.New("relay refused connection")
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	err = db.AutoMigrate(
		&model.User{},
		&model.Property{},
		&model.Room{},
		&model.Tenant{},
		&model.Payment{},
		&model.Notification{},
		&model.UserSettings{},
	)
	assert.NoError(t, err)
	return db
}

// seedTenancy creates owner, property, room and an active tenant whose lease
// ends the given number of days after the pinned "today".
func seedTenancy(t *testing.T, db *gorm.DB, today time.Time, daysUntilLeaseEnd int) *model.Tenant {
	owner := model.User{Name: "Ibu Sari", Email: "owner@example.com"}
	assert.NoError(t, db.Create(&owner).Error)

	property := model.Property{OwnerID: owner.ID, Name: "Kost Melati"}
	assert.NoError(t, db.Create(&property).Error)

	room := model.Room{PropertyID: property.ID, Name: "A1", Price: 1500000, Status: model.RoomOccupied}
	assert.NoError(t, db.Create(&room).Error)

	leaseEnd := today.AddDate(0, 0, daysUntilLeaseEnd)
	tenant := model.Tenant{
		PropertyID:    property.ID,
		RoomID:        &room.ID,
		Name:          "Budi",
		Email:         "budi@example.com",
		Status:        model.TenantActive,
		PaymentStatus: model.PaymentPaid,
		LeaseEnd:      &leaseEnd,
	}
	assert.NoError(t, db.Create(&tenant).Error)
	db.Model(&room).Update("tenant_id", tenant.ID)
	return &tenant
}

func newTestJob(db *gorm.DB, mail mailer.Mailer, today time.Time) *Job {
	job := NewJob(db, mail, realtime.NewHub(), 5)
	job.now = func() time.Time { return today }
	return job
}

func TestRunCreatesReminderInsideWindow(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	tenant := seedTenancy(t, db, dateOnly(today), 5)

	mail := &recordingMailer{}
	summary := newTestJob(db, mail, today).Run()

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Errors)

	var payment model.Payment
	assert.NoError(t, db.Where("tenant_id = ?", tenant.ID).First(&payment).Error)
	assert.Equal(t, model.PaymentPending, payment.Status)
	assert.Equal(t, float64(1500000), payment.Amount)
	assert.NotNil(t, payment.ReminderKey)

	var notifications int64
	db.Model(&model.Notification{}).Count(&notifications)
	assert.Equal(t, int64(1), notifications)

	// Tenant is no longer paid up once the new charge exists
	var updated model.Tenant
	assert.NoError(t, db.First(&updated, tenant.ID).Error)
	assert.Equal(t, model.PaymentPending, updated.PaymentStatus)

	// One email to the tenant, one to the owner
	assert.ElementsMatch(t, []string{"budi@example.com", "owner@example.com"}, mail.sent)
}

func TestRunSkipsTenantOutsideWindow(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedTenancy(t, db, today, 6) // one day before the 5-day window opens

	mail := &recordingMailer{}
	summary := newTestJob(db, mail, today).Run()

	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)

	var payments int64
	db.Model(&model.Payment{}).Count(&payments)
	assert.Equal(t, int64(0), payments)
	assert.Empty(t, mail.sent)
}

func TestRunSkipsExpiredLease(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedTenancy(t, db, today, 0) // lease ends today; window is half-open

	summary := newTestJob(db, &recordingMailer{}, today).Run()

	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tenant := seedTenancy(t, db, today, 3)

	mail := &recordingMailer{}
	job := newTestJob(db, mail, today)

	first := job.Run()
	assert.Equal(t, 1, first.Processed)

	second := job.Run()
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Errors)

	// Exactly one payment and one notification despite two runs
	var payments int64
	db.Model(&model.Payment{}).Where("tenant_id = ?", tenant.ID).Count(&payments)
	assert.Equal(t, int64(1), payments)

	var notifications int64
	db.Model(&model.Notification{}).Count(&notifications)
	assert.Equal(t, int64(1), notifications)

	// No repeat emails either
	assert.Len(t, mail.sent, 2)
}

func TestRunHonorsOwnerReminderDays(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tenant := seedTenancy(t, db, today, 8)

	var property model.Property
	assert.NoError(t, db.First(&property, tenant.PropertyID).Error)
	settings := model.UserSettings{UserID: property.OwnerID, PaymentReminderDays: 10}
	assert.NoError(t, db.Create(&settings).Error)

	summary := newTestJob(db, &recordingMailer{}, today).Run()
	assert.Equal(t, 1, summary.Processed, "owner's wider window makes the tenant eligible")
}

// A missing lease end date excludes the tenant from the scan entirely; the
// predicate must name the real column, not the JSON field.
func TestRunIgnoresTenantsWithoutLeaseEnd(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tenant := seedTenancy(t, db, today, 3)
	assert.NoError(t, db.Model(tenant).Update("lease_end", nil).Error)

	summary := newTestJob(db, &recordingMailer{}, today).Run()
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
}

func TestRunCountsProcessedWhenEmailFails(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tenant := seedTenancy(t, db, today, 3)

	summary := newTestJob(db, failingMailer{}, today).Run()

	// The committed reminder counts as processed; the send failure is
	// reported alongside it.
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Len(t, summary.Errors, 1)

	var payments int64
	db.Model(&model.Payment{}).Where("tenant_id = ?", tenant.ID).Count(&payments)
	assert.Equal(t, int64(1), payments)
}

func TestRunIgnoresInactiveTenants(t *testing.T) {
	db := setupTestDB(t)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tenant := seedTenancy(t, db, today, 3)
	db.Model(tenant).Update("status", model.TenantInactive)

	summary := newTestJob(db, &recordingMailer{}, today).Run()
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
}
