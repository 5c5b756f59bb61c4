package repository

import (
	"context"
	"errors"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique index rejects the write.
var ErrDuplicate = errors.New("duplicate")

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	//premium box candidates: active, in stock, highest stock first
	ListBoxCandidates(ctx context.Context, limit int) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error
}
