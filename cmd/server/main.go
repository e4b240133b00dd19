package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"cart-order-service/internal/config"
	"cart-order-service/internal/controller"
	"cart-order-service/internal/membership"
	"cart-order-service/internal/middleware"
	"cart-order-service/internal/pricing"
	"cart-order-service/internal/rabbit"
	"cart-order-service/internal/repository"
	"cart-order-service/internal/service"
	"cart-order-service/internal/wallet"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()

	// MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	db := mongoClient.Database(cfg.MongoDBName)

	repo := repository.NewMongoOrderRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create indexes", zap.Error(err))
	}

	// Wallet ledger: Redis when configured, in-process counter otherwise.
	var ledger wallet.Ledger
	if cfg.RedisAddr != "" {
		redisLedger, err := wallet.NewRedisLedger(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisLedger.Close()
		ledger = redisLedger
	} else {
		log.Warn("REDIS_ADDR not set, using in-memory wallet ledger")
		ledger = wallet.NewMemoryLedger()
	}

	params := pricing.Params{
		TaxRate:         cfg.GSTRate,
		CoinRate:        cfg.CoinRate,
		Shipping:        cfg.ShippingFlat,
		DiscountEnabled: cfg.TierDiscountEnabled,
	}

	orderService := service.NewOrderService(repo, ledger, params, log)
	authService := service.NewAuthService(cfg.AuthURL)
	profileService := service.NewProfileService(cfg.ProfileURL, log)
	tierResolver := membership.NewResolver()

	ctrl := controller.NewOrderController(orderService, ledger, profileService, tierResolver)

	r := gin.Default()

	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(authService))

	auth.GET("/cart", ctrl.GetCart)
	auth.PUT("/cart", ctrl.SyncCart)
	auth.DELETE("/cart", ctrl.ClearCart)

	auth.GET("/wallet", ctrl.GetWallet)

	auth.POST("/checkout/quote", ctrl.QuoteCheckout)
	auth.POST("/checkout/begin", ctrl.BeginCheckout)
	auth.POST("/checkout/abandon", ctrl.AbandonCheckout)

	auth.GET("/orders/mine", ctrl.GetMyOrders)

	admin := auth.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/orders/all", ctrl.GetAllOrders)
	admin.GET("/orders/status/:status", ctrl.GetOrdersByStatus)
	admin.PATCH("/orders/:orderId/status", ctrl.UpdateStatus)
	admin.PATCH("/orders/:orderId/delivery", ctrl.UpdateDeliveryStatus)
	admin.PATCH("/orders/:orderId", ctrl.PatchOrder)
	admin.PUT("/wallet/:userId", ctrl.SetWallet)
	admin.POST("/users/:userId/tier", ctrl.PinTier)
	admin.DELETE("/users/:userId/tier", ctrl.ClearTier)

	// RabbitMQ: payment gateway events drive the checkout transitions.
	conn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("failed to open RabbitMQ channel", zap.Error(err))
	}
	rabbit.SetupConsumers(ch, orderService, log)

	log.Info("cart order service listening", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
