package model

import (
	"time"
)

// UserSettings holds per-user preferences. PaymentReminderDays controls the
// reminder window used by the billing job for all of the user's properties.
type UserSettings struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	UserID              uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	NotifyEmail         bool      `json:"notify_email" gorm:"default:true"`
	NotifyPayment       bool      `json:"notify_payment" gorm:"default:true"`
	NotifyMaintenance   bool      `json:"notify_maintenance" gorm:"default:true"`
	Currency            string    `json:"currency" gorm:"type:varchar(10);default:'IDR'"`
	DateFormat          string    `json:"date_format" gorm:"type:varchar(20);default:'DD/MM/YYYY'"`
	PaymentReminderDays int       `json:"payment_reminder_days" gorm:"default:5"`
	SessionTimeoutMins  int       `json:"session_timeout_minutes" gorm:"default:60"`
	TwoFactorEnabled    bool      `json:"two_factor_enabled" gorm:"default:false"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
