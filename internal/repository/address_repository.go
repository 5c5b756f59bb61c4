package repository

import (
	"context"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
)

// 住所(Address)を保存・取得する窓口
type AddressRepository interface {
	Create(ctx context.Context, address model.Address) (model.Address, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	// FindByID returns ErrNotFound when the address does not exist.
	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	//checkout uses this to fill the order's shipping address
	FindDefaultByUserID(ctx context.Context, userID int64) (model.Address, bool, error)

	Update(ctx context.Context, address model.Address) error
	Delete(ctx context.Context, addressID int64) error
	SetDefault(ctx context.Context, userID, addressID int64) error
}
