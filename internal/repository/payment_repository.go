package repository

import (
	"context"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Payment, error)
}
