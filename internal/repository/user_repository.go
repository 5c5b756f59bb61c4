package repository

import (
	"context"
	"errors"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// FindByID / FindByEmail return ErrUserNotFound when there is no row.
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateSubscription(ctx context.Context, userID int64, sub model.Subscription) error
	IncrementTokenVersion(ctx context.Context, userID int64) (int, error)
}
