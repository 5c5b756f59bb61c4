package handler

import (
	"context"
	"net/http"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/config"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/middleware"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

type SubscriptionReader interface {
	GetMine(ctx context.Context, userID int64) (usecase.SubscriptionOutput, error)
}

type SubscriptionHandler struct {
	uc SubscriptionReader
}

func NewSubscriptionHandler(uc SubscriptionReader) *SubscriptionHandler {
	return &SubscriptionHandler{uc: uc}
}

func (h *SubscriptionHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo middleware.UserFinder) {
	e.GET("/subscription", h.mine, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))
}

// 期限切れは expired として返す
func (h *SubscriptionHandler) mine(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetMine(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
