package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/config"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/domain/model"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/validator"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authSecret = "auth-test-secret"

func newAuthFixture(t *testing.T) (*memStore, *usecase.AuthUsecase) {
	t.Helper()
	store := newMemStore()
	users := store.repos().Users()
	return store, usecase.NewAuthUsecase(config.Config{JWTSecret: authSecret}, users, store, validator.NewAuthValidator(users))
}

func TestAuthUsecase_RegisterThenLogin(t *testing.T) {
	store, uc := newAuthFixture(t)
	ctx := context.Background()

	reg, err := uc.Register(ctx, usecase.AuthRegisterRequest{Email: " Buyer@Example.com ", Password: "password123", Name: "Buyer"})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", reg.User.Email)
	assert.Equal(t, "USER", reg.User.Role)
	assert.Equal(t, "inactive", reg.User.SubscriptionStatus)

	stored := store.snapshot().users[reg.User.ID]
	assert.NotEqual(t, "password123", stored.PasswordHash)

	res, err := uc.Login(ctx, usecase.AuthLoginRequest{Email: "BUYER@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, 86400, res.Token.ExpiresIn)

	tok, err := jwt.Parse(res.Token.AccessToken, func(*jwt.Token) (interface{}, error) { return []byte(authSecret), nil })
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(reg.User.ID), claims["sub"])
	assert.Equal(t, "USER", claims["role"])
	assert.Equal(t, float64(0), claims["tv"])

	assert.NotNil(t, store.snapshot().users[reg.User.ID].LastLoginAt)
}

func TestAuthUsecase_Register_Rejects(t *testing.T) {
	_, uc := newAuthFixture(t)
	ctx := context.Background()

	_, err := uc.Register(ctx, usecase.AuthRegisterRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		email string
		pw    string
		want  error
	}{
		{"duplicate", "a@example.com", "password123", usecase.ErrConflict},
		{"bad email", "not-an-email", "password123", usecase.ErrValidation},
		{"short password", "b@example.com", "short", usecase.ErrValidation},
		{"empty", "", "", usecase.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Register(ctx, usecase.AuthRegisterRequest{Email: tt.email, Password: tt.pw})
			assert.True(t, errors.Is(err, tt.want), "err=%v", err)
		})
	}
}

func TestAuthUsecase_Login_Failures(t *testing.T) {
	store, uc := newAuthFixture(t)
	ctx := context.Background()

	reg, err := uc.Register(ctx, usecase.AuthRegisterRequest{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = uc.Login(ctx, usecase.AuthLoginRequest{Email: "a@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	_, err = uc.Login(ctx, usecase.AuthLoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	u := store.snapshot().users[reg.User.ID]
	u.IsActive = false
	store.addUser(u)

	_, err = uc.Login(ctx, usecase.AuthLoginRequest{Email: "a@example.com", Password: "password123"})
	assert.ErrorIs(t, err, usecase.ErrForbidden)

	_, err = uc.Me(ctx, reg.User.ID)
	assert.ErrorIs(t, err, usecase.ErrForbidden)
}

func TestAuthUsecase_Me_ReportsSubscription(t *testing.T) {
	store, uc := newAuthFixture(t)
	end := time.Now().Add(24 * time.Hour)
	store.addUser(model.User{
		ID: 7, Email: "p@example.com", Role: model.RoleAdmin, IsActive: true,
		Subscription: model.Subscription{SubscriptionStatus: model.SubscriptionActive, SubscriptionEndDate: &end},
	})

	dto, err := uc.Me(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", dto.Role)
	assert.Equal(t, "active", dto.SubscriptionStatus)

	_, err = uc.Me(context.Background(), 404)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

func TestAuthUsecase_ForceLogout(t *testing.T) {
	store, uc := newAuthFixture(t)
	store.addUser(model.User{ID: 7, Email: "u@example.com", Role: model.RoleUser, IsActive: true, TokenVersion: 2})

	res, err := uc.ForceLogout(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewTokenVersion)

	st := store.snapshot()
	assert.Equal(t, 3, st.users[7].TokenVersion)
	require.Len(t, st.audits, 1)
	assert.Equal(t, model.AuditActionForceLogout, st.audits[0].Action)

	_, err = uc.ForceLogout(context.Background(), 1, 404)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	_, err = uc.ForceLogout(context.Background(), 1, 0)
	assert.ErrorIs(t, err, usecase.ErrValidation)
}
