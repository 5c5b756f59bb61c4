package model

import "time"

// Payment is an audit copy of what the provider reported; order state never reads it.
type Payment struct {
	ID                      int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID                 int64     `gorm:"not null;index" json:"order_id"`
	UserID                  *int64    `gorm:"index" json:"user_id"`
	ExternalSessionID       string    `gorm:"type:varchar(255);not null;index" json:"external_session_id"`
	ExternalPaymentIntentID string    `gorm:"type:varchar(255);index" json:"external_payment_intent_id"`
	Amount                  int64     `gorm:"not null" json:"amount"`
	Currency                string    `gorm:"type:varchar(3);not null" json:"currency"`
	Status                  string    `gorm:"type:varchar(20);not null" json:"status"`
	BillingName             string    `gorm:"type:varchar(255)" json:"billing_name"`
	BillingEmail            string    `gorm:"type:varchar(255)" json:"billing_email"`
	CreatedAt               time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
