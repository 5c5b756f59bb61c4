package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Moisinho/odym-ecommerce-sub000/internal/config"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/handler"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/infra/db"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/infra/messaging"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/infra/payment"
	infraRepo "github.com/Moisinho/odym-ecommerce-sub000/internal/infra/repository"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/logger"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/middleware"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/server"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/usecase"
	"github.com/Moisinho/odym-ecommerce-sub000/internal/validator"

	"go.uber.org/zap"
)

func main() {
	config.LoadDotenv(".env", "../.env")

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect database", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	//Repository（GORM実装）
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//注文イベント。URL未設定ならログだけ
	var publisher usecase.OrderEventPublisher
	if cfg.RabbitMQURL != "" {
		p, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.OrderEventsExchange, log)
		if err != nil {
			log.Fatal("Failed to connect RabbitMQ", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	} else {
		publisher = messaging.NewNoopPublisher(log)
	}

	provider := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripeTimeout)
	clock := usecase.SystemClock()
	record := middleware.RecordOrderOperation

	//Usecase
	materializer := usecase.NewOrderMaterializer(txm, publisher, record, clock, cfg.Currency, log)
	subscriptionUC := usecase.NewSubscriptionUsecase(
		userRepo, productRepo, materializer, clock, cfg.SubscriptionMonths, cfg.PremiumBoxSize, log,
	)
	checkoutUC := usecase.NewCheckoutUsecase(productRepo, userRepo, provider, usecase.CheckoutSettings{
		Currency:          cfg.Currency,
		FrontendURL:       cfg.FrontendURL,
		PremiumPriceCents: cfg.PremiumPriceCents,
	}, clock, record, log)
	reconcileUC := usecase.NewReconcileUsecase(provider, materializer, subscriptionUC, record, log)
	productUC := usecase.NewProductUsecase(productRepo, txm)
	orderUC := usecase.NewOrderUsecase(txm)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, record)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	authUC := usecase.NewAuthUsecase(cfg, userRepo, txm, validator.NewAuthValidator(userRepo))

	//Handler
	srv := server.New(cfg, log, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminUser:    handler.NewAdminUserHandler(cfg, userRepo, authUC),
		Order:        handler.NewOrderHandler(orderUC),
		Address:      handler.NewAddressHandler(addressUC),
		Checkout:     handler.NewCheckoutHandler(checkoutUC, reconcileUC, log),
		Subscription: handler.NewSubscriptionHandler(subscriptionUC),
		Health:       handler.NewHealthHandler(sqlDB),
	}, userRepo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}
}
