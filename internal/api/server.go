package api

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lark/internal/cache"
	"lark/internal/config"
	"lark/internal/database"
	"lark/internal/external"
	"lark/internal/handlers"
	"lark/internal/messaging"
	"lark/internal/middleware"
	"lark/internal/monitoring"
	"lark/internal/repository"
	"lark/internal/repository/memstore"
	"lark/internal/search"
	"lark/internal/service"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
}

// NewServer wires the full API process. Postgres is required (unless the
// memory backend is selected); NATS, Valkey and Elasticsearch degrade to
// disabled with a warning, since none of them gate a state transition.
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	server := &Server{config: cfg}

	var store service.Store
	switch cfg.StoreBackend {
	case "memory":
		slog.Warn("Using in-memory store; all state is lost on restart")
		store = memstore.New()
	default:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.RunMigrations(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		server.db = db
		store = repository.NewRepositories(db)
	}

	deps := service.Deps{
		Store:      store,
		SessionTTL: cfg.SessionTTL,
		ClaimBase:  cfg.ClaimBase,
	}

	if cfg.Payment.BaseURL != "" {
		deps.Gateway = external.NewPaymentClient(cfg.Payment)
	} else {
		slog.Warn("No payment gateway configured, approving all charges")
		deps.Gateway = external.StubGateway{}
	}

	if cfg.Notify.BaseURL != "" {
		deps.Notifier = external.NewNotifyClient(cfg.Notify)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		slog.Warn("NATS unavailable, domain events disabled", "error", err)
	} else {
		server.nats = natsClient
		deps.Events = natsClient
	}

	valkeyClient, err := cache.NewValkeyClient(cfg.Cache)
	if err != nil {
		slog.Warn("Valkey unavailable, tier caching disabled", "error", err)
	} else {
		server.valkey = valkeyClient
	}

	esClient, err := search.NewElasticsearchClient(config.LoadElasticsearchConfig())
	if err != nil {
		slog.Warn("Elasticsearch unavailable, marketplace browse falls back to the store", "error", err)
	} else {
		deps.Index = esClient
	}

	server.services = service.NewServices(deps)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(monitoring.Middleware())

	server.router = router
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, s.valkey)

	api := s.router.Group("/api")
	api.Use(middleware.BuyerIdentity())
	{
		tiers := api.Group("/tiers")
		{
			tiers.POST("", h.CreateTier)
			tiers.GET("", h.ListTiers)
			tiers.GET("/:id", h.GetTier)
		}

		checkout := api.Group("/checkout")
		{
			checkout.POST("/start", h.StartCheckout)
			checkout.POST("/abandon", h.AbandonCheckout)
			checkout.POST("/:step", h.AdvanceCheckout)
		}

		api.GET("/orders/:id", h.GetOrder)

		tickets := api.Group("/tickets")
		{
			tickets.GET("/:id", h.GetTicket)
			tickets.POST("/:id/transfer", h.InitiateTransfer)
			tickets.POST("/:id/listings", h.CreateListing)
		}

		transfers := api.Group("/transfers")
		{
			transfers.POST("/:id/accept", h.AcceptTransfer)
			transfers.POST("/:id/cancel", h.CancelTransfer)
		}

		listings := api.Group("/listings")
		{
			listings.GET("", h.ListListings)
			listings.POST("/:id/purchase", h.PurchaseListing)
			listings.POST("/:id/remove", h.RemoveListing)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", monitoring.Handler())
}

func (s *Server) healthCheck(c *gin.Context) {
	if s.db != nil {
		if err := s.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "lark-api",
	})
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) Cleanup() error {
	s.services.Close()

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Printf("Error closing NATS connection: %v", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			log.Printf("Error closing Valkey connection: %v", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
			return err
		}
	}

	return nil
}
