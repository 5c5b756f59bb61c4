package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(255)"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time

	Subscription Subscription `gorm:"embedded"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscription is only written by subscription activation.
type Subscription struct {
	SubscriptionStatus    SubscriptionStatus `gorm:"type:varchar(20);not null;default:'inactive'" json:"subscription_status"`
	SubscriptionStartDate *time.Time         `json:"subscription_start_date"`
	SubscriptionEndDate   *time.Time         `json:"subscription_end_date"`
	StripeCustomerID      string             `gorm:"type:varchar(255)" json:"stripe_customer_id"`
	StripeSubscriptionID  string             `gorm:"type:varchar(255)" json:"stripe_subscription_id"`
}

// EffectiveStatus reports expired once the end date has passed, whatever is stored.
func (s Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.SubscriptionStatus == SubscriptionActive && s.SubscriptionEndDate != nil && now.After(*s.SubscriptionEndDate) {
		return SubscriptionExpired
	}
	if s.SubscriptionStatus == "" {
		return SubscriptionInactive
	}
	return s.SubscriptionStatus
}

func (s Subscription) IsPremium(now time.Time) bool {
	return s.EffectiveStatus(now) == SubscriptionActive
}
