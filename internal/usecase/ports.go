package usecase

import (
	"context"
	"time"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

type CheckoutLineItem struct {
	Name       string
	Images     []string
	UnitAmount int64
	Quantity   int64
}

type CreateSessionParams struct {
	LineItems     []CheckoutLineItem
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// CheckoutSession is the provider's hosted session, reduced to what reconciliation reads.
type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	Paid            bool
	CustomerEmail   string
	CustomerName    string
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
	PaymentIntentID string
	CustomerID      string
	SubscriptionID  string
	ShippingAddress model.ShippingAddress
}

// PaymentRef is the idempotency key for orders created from this session.
func (s CheckoutSession) PaymentRef() string {
	if s.PaymentIntentID != "" {
		return s.PaymentIntentID
	}
	return s.ID
}

// ProviderEvent is a verified webhook event. Session is set only for checkout session events.
// DecodeErr is set when the signature passed but the object could not be read.
type ProviderEvent struct {
	ID        string
	Type      string
	Session   *CheckoutSession
	DecodeErr error
}

// 決済プロバイダの窓口
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, p CreateSessionParams) (CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error)
	// ConstructEvent verifies the signature before decoding anything.
	ConstructEvent(payload []byte, signature string) (ProviderEvent, error)
}

type OrderCreatedEvent struct {
	OrderID     int64           `json:"order_id"`
	UserID      *int64          `json:"user_id"`
	OrderType   model.OrderType `json:"order_type"`
	TotalAmount int64           `json:"total_amount"`
	Currency    string          `json:"currency"`
	PaymentRef  string          `json:"payment_ref"`
	ItemCount   int             `json:"item_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev OrderCreatedEvent) error
}

// Clock lets tests pin "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }
