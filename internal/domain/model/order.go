package model

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type OrderType string

const (
	OrderTypeStandard   OrderType = "standard"
	OrderTypePremiumBox OrderType = "premium_box"
)

// PremiumBoxRefSuffix keeps the box order's payment reference apart from the standard one.
const PremiumBoxRefSuffix = "_premium_box"

type Order struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID *int64 `gorm:"index" json:"user_id"`

	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	OrderType     OrderType     `gorm:"type:varchar(20);not null;default:'standard'" json:"order_type"`
	TotalAmount   int64         `gorm:"not null" json:"total_amount"`
	Currency      string        `gorm:"type:varchar(3);not null" json:"currency"`
	CustomerEmail string        `gorm:"type:varchar(255)" json:"customer_email"`

	//provider payment reference; unique so a redelivered webhook cannot insert twice
	PaymentRef string `gorm:"type:varchar(255);not null;uniqueIndex" json:"payment_ref"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`

	//管理者削除は論理削除。payment_refを残して再送で作り直させない
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HoldsStock reports whether the order's items are still taken out of inventory.
func (o Order) HoldsStock() bool {
	return o.Status != OrderStatusCancelled && o.Status != OrderStatusDelivered
}
