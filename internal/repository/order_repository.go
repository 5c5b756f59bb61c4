package repository

import (
	"context"
	"time"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page      int
	Limit     int
	Status    string
	OrderType string
	UserID    *int64
	From      *time.Time
	To        *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	// Create returns ErrDuplicate when payment_ref already exists.
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	Delete(ctx context.Context, orderID int64) error

	//同じ決済参照なら同じ注文
	FindByPaymentRef(ctx context.Context, ref string) (model.Order, bool, error)
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
