package billing

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kost-service/internal/model"
	"kost-service/internal/realtime"
	"kost-service/pkg/logger"
	"kost-service/pkg/mailer"
	"kost-service/prometheus"
)

// Summary is the JSON result of one reminder job run.
type Summary struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Job scans active tenants approaching their lease end and creates one
// pending payment plus one notification per tenant, then emails tenant and
// owner. A unique reminder key on payments makes repeat runs within the same
// window a no-op instead of a duplicate.
type Job struct {
	db                  *gorm.DB
	mail                mailer.Mailer
	hub                 *realtime.Hub
	defaultReminderDays int

	// now is injectable so tests can pin the clock
	now func() time.Time
}

// NewJob creates a reminder job
func NewJob(db *gorm.DB, mail mailer.Mailer, hub *realtime.Hub, defaultReminderDays int) *Job {
	if defaultReminderDays <= 0 {
		defaultReminderDays = 5
	}
	return &Job{
		db:                  db,
		mail:                mail,
		hub:                 hub,
		defaultReminderDays: defaultReminderDays,
		now:                 time.Now,
	}
}

// Run processes all eligible tenants. Tenants are handled independently:
// one tenant's failure is collected and does not abort the batch.
func (j *Job) Run() Summary {
	log := logger.GetLogger()
	prometheus.BillingRunCounter.Inc()
	start := time.Now()
	defer func() {
		prometheus.BillingRunDuration.Observe(time.Since(start).Seconds())
	}()

	var summary Summary

	var tenants []model.Tenant
	err := j.db.Where("status = ? AND lease_end IS NOT NULL", model.TenantActive).Find(&tenants).Error
	if err != nil {
		log.Error("Billing run failed to load tenants", zap.Error(err))
		summary.Errors = append(summary.Errors, fmt.Sprintf("load tenants: %v", err))
		return summary
	}

	today := dateOnly(j.now())

	for _, tenant := range tenants {
		created, err := j.processTenant(&tenant, today)
		// A tenant whose reminder rows committed counts as processed even
		// when the follow-up email failed; the mail error is still collected.
		if created {
			prometheus.RecordReminderOutcome("created")
			summary.Processed++
		}
		switch {
		case err != nil:
			if !created {
				prometheus.RecordReminderOutcome("error")
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("tenant %d (%s): %v", tenant.ID, tenant.Name, err))
			log.Warn("Reminder failed for tenant",
				zap.Uint("tenant_id", tenant.ID), zap.Error(err))
		case !created:
			prometheus.RecordReminderOutcome("skipped")
			summary.Skipped++
		}
	}

	log.Info("Billing reminder run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)))
	return summary
}

// processTenant creates the reminder rows for one tenant when it sits inside
// its reminder window. Returns created=false when the tenant is outside the
// window or was already reminded for this lease end date.
func (j *Job) processTenant(tenant *model.Tenant, today time.Time) (created bool, err error) {
	leaseEnd := dateOnly(*tenant.LeaseEnd)

	var property model.Property
	if err := j.db.First(&property, tenant.PropertyID).Error; err != nil {
		return false, fmt.Errorf("property lookup: %w", err)
	}

	reminderDays := j.defaultReminderDays
	var settings model.UserSettings
	if err := j.db.Where("user_id = ?", property.OwnerID).First(&settings).Error; err == nil {
		if settings.PaymentReminderDays > 0 {
			reminderDays = settings.PaymentReminderDays
		}
	}

	// Window: [lease_end - reminder_days, lease_end)
	windowStart := leaseEnd.AddDate(0, 0, -reminderDays)
	if today.Before(windowStart) || !today.Before(leaseEnd) {
		return false, nil
	}

	if tenant.RoomID == nil {
		return false, errors.New("no room assigned")
	}
	var room model.Room
	if err := j.db.First(&room, *tenant.RoomID).Error; err != nil {
		return false, fmt.Errorf("room lookup: %w", err)
	}
	if room.Price <= 0 {
		return false, errors.New("room has no price")
	}

	reminderKey := fmt.Sprintf("%d:%s", tenant.ID, leaseEnd.Format("2006-01-02"))

	var payment model.Payment
	var notification model.Notification
	txErr := j.db.Transaction(func(tx *gorm.DB) error {
		// Dedup: one reminder payment per tenant per lease end date. The
		// unique index on reminder_key backs this check against races.
		var existing int64
		if err := tx.Model(&model.Payment{}).Where("reminder_key = ?", reminderKey).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errAlreadyReminded
		}

		payment = model.Payment{
			TenantID:    tenant.ID,
			RoomID:      room.ID,
			PropertyID:  property.ID,
			Amount:      room.Price,
			DueDate:     leaseEnd,
			Status:      model.PaymentPending,
			Notes:       "Auto-generated rent reminder",
			ReminderKey: &reminderKey,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		notification = model.Notification{
			UserID:     &property.OwnerID,
			PropertyID: &property.ID,
			Title:      "Rent due soon",
			Message: fmt.Sprintf("Rent for %s (room %s, %s) is due on %s.",
				tenant.Name, room.Name, property.Name, leaseEnd.Format("2006-01-02")),
			Type:   model.NotifyPayment,
			Status: model.NotificationUnread,
		}
		if err := tx.Create(&notification).Error; err != nil {
			return fmt.Errorf("create notification: %w", err)
		}

		if tenant.PaymentStatus == model.PaymentPaid {
			if err := tx.Model(&model.Tenant{}).Where("id = ?", tenant.ID).
				Update("payment_status", model.PaymentPending).Error; err != nil {
				return fmt.Errorf("update tenant payment status: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, errAlreadyReminded) {
			return false, nil
		}
		return false, txErr
	}

	j.hub.Publish(realtime.TopicNotifications, realtime.ActionInsert, notification)

	// Emails are sent after the rows are committed; a send failure is
	// reported but does not undo the reminder.
	var mailErrs []error
	if tenant.Email != "" {
		if err := j.sendTenantMail(tenant, &property, &room, leaseEnd); err != nil {
			mailErrs = append(mailErrs, err)
		}
	}
	if err := j.sendOwnerMail(tenant, &property, &room, leaseEnd); err != nil {
		mailErrs = append(mailErrs, err)
	}
	if len(mailErrs) > 0 {
		return true, fmt.Errorf("reminder created but email failed: %v", mailErrs)
	}
	return true, nil
}

var errAlreadyReminded = errors.New("already reminded")

func (j *Job) sendTenantMail(tenant *model.Tenant, property *model.Property, room *model.Room, dueDate time.Time) error {
	subject := fmt.Sprintf("Rent reminder for %s", property.Name)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour rent of %.2f for room %s at %s is due on %s.\nPlease arrange payment before the due date.\n\nThank you.",
		tenant.Name, room.Price, room.Name, property.Name, dueDate.Format("2006-01-02"))
	if err := j.mail.Send(tenant.Email, subject, body); err != nil {
		prometheus.RecordEmail("failed")
		return err
	}
	prometheus.RecordEmail("sent")
	return nil
}

func (j *Job) sendOwnerMail(tenant *model.Tenant, property *model.Property, room *model.Room, dueDate time.Time) error {
	var owner model.User
	if err := j.db.First(&owner, property.OwnerID).Error; err != nil {
		return fmt.Errorf("owner lookup: %w", err)
	}

	subject := fmt.Sprintf("Upcoming rent payment at %s", property.Name)
	body := fmt.Sprintf(
		"Hello %s,\n\nA payment reminder was sent to %s (room %s) at %s.\nAmount %.2f, due %s.\n",
		owner.Name, tenant.Name, room.Name, property.Name, room.Price, dueDate.Format("2006-01-02"))
	if err := j.mail.Send(owner.Email, subject, body); err != nil {
		prometheus.RecordEmail("failed")
		return err
	}
	prometheus.RecordEmail("sent")
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
