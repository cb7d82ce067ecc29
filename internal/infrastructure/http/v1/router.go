// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/catalogs/suppliergood"
	"mise/internal/domain/consumption"
	"mise/internal/domain/documents/cycle"
	"mise/internal/domain/documents/purchase"
	"mise/internal/infrastructure/http/v1/handlers"
	"mise/internal/infrastructure/http/v1/middleware"
	"mise/internal/infrastructure/storage/postgres"
	"mise/internal/infrastructure/storage/postgres/catalog_repo"
	"mise/internal/infrastructure/storage/postgres/document_repo"
	"mise/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (used for health checks and
	// repository wiring)
	Pool *postgres.Pool

	// TxManager coordinates transactions across repositories
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no user context required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	// Shared domain wiring. Repos are stateless, services hold them for
	// the process lifetime.
	goodsRepo := catalog_repo.NewSupplierGoodRepo(cfg.TxManager)
	businessGoodsRepo := catalog_repo.NewBusinessGoodRepo(cfg.TxManager)
	cycleRepo := document_repo.NewCycleRepo(cfg.TxManager)
	purchaseRepo := document_repo.NewPurchaseRepo(cfg.TxManager)

	ledger := suppliergood.NewLedger(goodsRepo)
	engine := cycle.NewEngine(cycleRepo, ledger, cfg.TxManager)
	purchaseService := purchase.NewService(purchaseRepo, cycleRepo, ledger, cfg.TxManager)
	projector := consumption.NewProjector(businessGoodsRepo, ledger)

	// API v1
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.UserContext())
	{
		registerInventoryRoutes(apiV1, engine)
		registerPurchaseRoutes(apiV1, purchaseService)
		registerOrderRoutes(apiV1, projector)
	}

	return router
}

// registerInventoryRoutes registers inventory cycle endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, engine *cycle.Engine) {
	handler := handlers.NewInventoryHandler(engine)

	inventories := rg.Group("/inventories")
	{
		inventories.POST("", handler.Create)
		inventories.GET("", handler.List)
		inventories.GET("/:id", handler.Get)
		inventories.PATCH("/:id", handler.Finalize)
		inventories.POST("/:id/reset", handler.Reset)
		inventories.PATCH("/:id/supplier-goods/:goodId/counts", handler.RecordCount)
		inventories.PATCH("/:id/supplier-goods/:goodId/counts/:countId", handler.ReeditCount)
	}
}

// registerPurchaseRoutes registers purchase document endpoints.
func registerPurchaseRoutes(rg *gin.RouterGroup, service *purchase.Service) {
	handler := handlers.NewPurchaseHandler(service)

	purchases := rg.Group("/purchases")
	{
		purchases.POST("", handler.Create)
		purchases.GET("", handler.List)
		purchases.GET("/:id", handler.Get)
		purchases.DELETE("/:id", handler.Delete)
		purchases.POST("/:id/items", handler.AddItem)
		purchases.PATCH("/:id/items/:itemId", handler.EditItem)
		purchases.DELETE("/:id/items/:itemId", handler.DeleteItem)
	}
}

// registerOrderRoutes registers the order lifecycle hooks.
func registerOrderRoutes(rg *gin.RouterGroup, projector *consumption.Projector) {
	handler := handlers.NewOrderHandler(projector)

	orders := rg.Group("/orders")
	{
		orders.POST("/consume", handler.Consume)
		orders.POST("/reverse", handler.Reverse)
	}
}
