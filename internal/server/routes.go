package server

import (
	"github.com/Moisinho/odym-ecommerce-sub000/internal/config"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/handler"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// nilのhandlerは登録しない
type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	AdminOrder   *handler.AdminOrderHandler
	AdminUser    *handler.AdminUserHandler
	Order        *handler.OrderHandler
	Address      *handler.AddressHandler
	Checkout     *handler.CheckoutHandler
	Subscription *handler.SubscriptionHandler
	Health       *handler.HealthHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers, userRepo middleware.UserFinder) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}
	if h.Auth != nil {
		h.Auth.RegisterRoutes(e, cfg, userRepo)
	}
	if h.Product != nil {
		h.Product.RegisterRoutes(e)
	}
	if h.Checkout != nil {
		h.Checkout.RegisterRoutes(e, cfg, userRepo)
	}
	if h.Order != nil {
		h.Order.RegisterRoutes(e, cfg, userRepo)
	}
	if h.Subscription != nil {
		h.Subscription.RegisterRoutes(e, cfg, userRepo)
	}
	if h.Address != nil {
		h.Address.RegisterRoutes(e, cfg, userRepo)
	}
	if h.AdminProduct != nil {
		h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	}
	if h.AdminOrder != nil {
		h.AdminOrder.RegisterRoutes(e, cfg, userRepo)
	}
	if h.AdminUser != nil {
		h.AdminUser.RegisterRoutes(e)
	}
}
