package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/config"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/middleware"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// webhook本文の上限
const maxWebhookBodyBytes = 64 << 10

type CheckoutService interface {
	CreateSession(ctx context.Context, in usecase.CreateSessionInput) (usecase.CreateSessionOutput, error)
	CreateSubscriptionSession(ctx context.Context, userID int64) (usecase.CreateSessionOutput, error)
	GetSessionStatus(ctx context.Context, sessionID string) (usecase.SessionStatusOutput, error)
}

type ReconcileService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	VerifySession(ctx context.Context, sessionID string) (usecase.VerifyResult, error)
}

type CheckoutHandler struct {
	checkout  CheckoutService
	reconcile ReconcileService
	log       *zap.Logger
}

func NewCheckoutHandler(checkout CheckoutService, reconcile ReconcileService, log *zap.Logger) *CheckoutHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{checkout: checkout, reconcile: reconcile, log: log}
}

type CreateCheckoutSessionRequest struct {
	Items         []usecase.CheckoutItemInput `json:"items"`
	CustomerEmail string                      `json:"customerEmail"`
	// 無視される。ログイン中ならJWTのユーザーを使う
	UserID *int64 `json:"userId"`
}

type VerifySessionRequest struct {
	SessionID string `json:"sessionId"`
}

type checkoutSessionResponse struct {
	Success     bool   `json:"success"`
	SessionID   string `json:"sessionId"`
	URL         string `json:"url"`
	TotalAmount int64  `json:"totalAmount"`
	Discounted  bool   `json:"discounted"`
}

type verifySessionResponse struct {
	Success bool `json:"success"`
	usecase.VerifyResult
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo middleware.UserFinder) {
	g := e.Group("/checkout")

	g.POST("/create-checkout-session", h.createSession,
		middleware.OptionalAuthJWT(cfg), middleware.OptionalTokenVersionGuard(userRepo))
	g.POST("/create-subscription-session", h.createSubscriptionSession,
		middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))
	g.GET("/session/:sessionId", h.sessionStatus)
	g.POST("/webhook", h.webhook)
	g.POST("/verify-session", h.verifySession)
}

func (h *CheckoutHandler) createSession(c echo.Context) error {
	var req CreateCheckoutSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	in := usecase.CreateSessionInput{
		Items:         req.Items,
		CustomerEmail: req.CustomerEmail,
	}
	// bodyのuserIdは信用しない
	if id, ok := getUserIDFromContext(c); ok {
		in.UserID = &id
	}

	out, err := h.checkout.CreateSession(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, checkoutSessionResponse{
		Success:     true,
		SessionID:   out.SessionID,
		URL:         out.URL,
		TotalAmount: out.TotalAmount,
		Discounted:  out.Discounted,
	})
}

func (h *CheckoutHandler) createSubscriptionSession(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.checkout.CreateSubscriptionSession(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, checkoutSessionResponse{
		Success:     true,
		SessionID:   out.SessionID,
		URL:         out.URL,
		TotalAmount: out.TotalAmount,
	})
}

func (h *CheckoutHandler) sessionStatus(c echo.Context) error {
	out, err := h.checkout.GetSessionStatus(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 署名検証には生のbodyが必要なのでBindしない
func (h *CheckoutHandler) webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read body"})
	}
	if len(payload) > maxWebhookBodyBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body too large"})
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if err := h.reconcile.HandleWebhook(c.Request().Context(), payload, signature); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

func (h *CheckoutHandler) verifySession(c echo.Context) error {
	var req VerifySessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.reconcile.VerifySession(c.Request().Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		h.log.Warn("Session verification failed",
			zap.String("session_id", req.SessionID),
			zap.String("request_id", middleware.RequestID(c)),
			zap.Error(err),
		)
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, verifySessionResponse{Success: true, VerifyResult: res})
}
