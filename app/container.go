package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/binsarkiel/chatto/app/config"
	"github.com/binsarkiel/chatto/internal/adapters"
	"github.com/binsarkiel/chatto/internal/documents"
	"github.com/binsarkiel/chatto/internal/handlers"
	"github.com/binsarkiel/chatto/internal/realtime"
	"github.com/binsarkiel/chatto/internal/repositories"
	"github.com/binsarkiel/chatto/internal/services"
)

// store is what the container needs from either backend beyond the
// repository ports.
type store interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

type Container struct {
	isShuttingDown bool

	GinEngine   *gin.Engine
	Config      *config.Config
	Redis       *redis.Client
	RateLimiter *RateLimiter

	Metrics        *Metrics
	Logger         *slog.Logger
	TracerProvider *tracesdk.TracerProvider
	Tracer         trace.Tracer

	Server *http.Server

	Store store

	AuthService  *services.AuthService
	EmailService *services.EmailService
	ChatService  *services.ChatService

	AuthHandler      *handlers.AuthHandler
	ChatHandler      *handlers.ChatHandler
	GroupHandler     *handlers.GroupHandler
	WebSocketHandler *handlers.WebSocketHandler

	WsHub *realtime.Hub
}

func NewContainer() (*Container, error) {
	container := &Container{}

	if err := container.initCore(); err != nil {
		return nil, err
	}

	if err := container.initProductionFeatures(); err != nil {
		return nil, err
	}

	// The gauge is attached above; the hub loop may start now.
	go container.WsHub.Run()

	return container, nil
}

func (c *Container) initCore() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = &cfg

	c.Logger = c.initLogger()
	c.Redis = c.initRedis()

	if err = c.initTracing(); err != nil {
		return err
	}

	if err = c.initStores(); err != nil {
		return err
	}

	c.RateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	c.WsHub = realtime.NewHub(services.NewSocketGateway(c.ChatService, c.Logger), c.AuthService, c.Logger)
	c.ChatService.SetHub(c.WsHub)

	c.AuthHandler = handlers.NewAuthHandler(c.AuthService, c.Logger)
	c.ChatHandler = handlers.NewChatHandler(c.ChatService, c.Logger)
	c.GroupHandler = handlers.NewGroupHandler(c.ChatService, c.Logger)
	c.WebSocketHandler = handlers.NewWebSocketHandler(c.WsHub, c.AuthService, c.Logger)

	c.Server = c.initServer()
	c.GinEngine = c.initGinEngine()
	c.Server.Handler = c.GinEngine

	return nil
}

// initStores picks the backend by database.driver and wires the services on
// top of whichever set of ports it provides.
func (c *Container) initStores() error {
	cfg := c.Config

	c.EmailService = services.NewEmailService(cfg.Email, c.Logger)
	tokenRepo := adapters.NewRedisTokenRepository(c.Redis)

	switch cfg.Database.Driver {
	case "postgres":
		repo, err := repositories.NewRepositoryAdapter(cfg.Database, c.Logger)
		if err != nil {
			c.Logger.Error("repository initialize error", "error", err.Error())
			return err
		}
		c.Store = repo
		c.ChatService = services.NewChatService(repo.Conversation, repo.Message, repo.User, c.Logger)
		c.AuthService = services.NewAuthService(repo.User, c.EmailService, &services.BcryptHasher{}, tokenRepo, []byte(cfg.JWT.SecretKey), cfg.JWT.TTL, c.Logger)
	case "mongo":
		docs, err := documents.NewDocumentStoreAdapter(cfg.Database, c.Logger)
		if err != nil {
			c.Logger.Error("document store initialize error", "error", err.Error())
			return err
		}
		c.Store = docs
		c.ChatService = services.NewChatService(docs.Conversation, docs.Message, docs.User, c.Logger)
		c.AuthService = services.NewAuthService(docs.User, c.EmailService, &services.BcryptHasher{}, tokenRepo, []byte(cfg.JWT.SecretKey), cfg.JWT.TTL, c.Logger)
	default:
		return fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}

	return nil
}

func (c *Container) initProductionFeatures() error {
	c.initMetrics()
	c.WsHub.SetConnectionGauge(c.Metrics.ActiveWebSockets)

	c.initHealthRoutes(c.GinEngine)

	c.GinEngine.Use(services.SecurityMiddleware())
	c.GinEngine.Use(services.RequestIDMiddleware())
	c.GinEngine.Use(MetricsMiddleware(c.Metrics))

	c.GinEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return nil
}

func (c *Container) initMetrics() {
	c.Metrics = &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration",
			},
			[]string{"method", "endpoint"},
		),
		ActiveWebSockets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections_active",
				Help: "Currently open websocket connections",
			},
		),
	}
	prometheus.MustRegister(c.Metrics.RequestsTotal, c.Metrics.RequestDuration, c.Metrics.ActiveWebSockets)
}

func (c *Container) initTracing() error {
	if !c.Config.Tracing.Enabled {
		c.Logger.Info("tracing disabled")
		return nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(c.Config.Tracing.Endpoint)))
	if err != nil {
		return err
	}

	c.TracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(c.Config.Tracing.ServiceName),
			attribute.String("environment", c.Config.Environment.Current),
		)),
	)

	otel.SetTracerProvider(c.TracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	c.Tracer = c.TracerProvider.Tracer("chatto-app")

	c.Logger.Info("tracing initialized", "endpoint", c.Config.Tracing.Endpoint)
	return nil
}

func (c *Container) initHealthRoutes(eng *gin.Engine) {
	eng.GET("/health", func(ctx *gin.Context) {
		health := map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if err := c.Store.HealthCheck(ctx.Request.Context()); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			ctx.JSON(http.StatusServiceUnavailable, health)
			return
		}

		if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			ctx.JSON(http.StatusServiceUnavailable, health)
			return
		}

		health["database"] = "healthy"
		health["redis"] = "healthy"
		ctx.JSON(http.StatusOK, health)
	})

	eng.GET("/ready", func(ctx *gin.Context) {
		if c.isShuttingDown {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting down"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	eng.GET("/live", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "live"})
	})
}

func (c *Container) initGinEngine() *gin.Engine {
	eng := gin.Default()

	if c.Config.Tracing.Enabled {
		eng.Use(otelgin.Middleware(c.Config.Tracing.ServiceName))
	}

	api := eng.Group("/api")
	api.Use(RateLimitMiddleware(c.RateLimiter))
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", c.AuthHandler.Register)
			authGroup.POST("/login", c.AuthHandler.Login)

			authGroup.POST("/logout", c.AuthHandler.AuthMiddleware(), c.AuthHandler.Logout)
			authGroup.PUT("/profile", c.AuthHandler.AuthMiddleware(), c.AuthHandler.UpdateProfile)
		}

		api.GET("/users", c.AuthHandler.AuthMiddleware(), c.AuthHandler.ListUsers)

		chatsGroup := api.Group("/chats")
		chatsGroup.Use(c.AuthHandler.AuthMiddleware())
		{
			chatsGroup.POST("", c.ChatHandler.CreateDirectChat)
			chatsGroup.GET("", c.ChatHandler.ListChats)
			chatsGroup.GET("/:chatId/messages", c.ChatHandler.GetMessages)
			chatsGroup.POST("/:chatId/messages", c.ChatHandler.SendMessage)
			chatsGroup.POST("/:chatId/read", c.ChatHandler.MarkRead)
		}

		groupsGroup := api.Group("/groups")
		groupsGroup.Use(c.AuthHandler.AuthMiddleware())
		{
			groupsGroup.POST("", c.GroupHandler.CreateGroup)
			groupsGroup.GET("/:groupId/members", c.GroupHandler.ListMembers)
			groupsGroup.POST("/:groupId/members", c.GroupHandler.AddMember)
			groupsGroup.DELETE("/:groupId/members/:userId", c.GroupHandler.RemoveMember)
			groupsGroup.POST("/:groupId/admin/:userId", c.GroupHandler.TransferAdmin)
		}

		// Token optional at upgrade; unidentified sockets must identify
		// before joining rooms.
		api.GET("/ws", c.WebSocketHandler.HandleWebSocket)
	}

	return eng
}

func (c *Container) initLogger() *slog.Logger {
	var logger *slog.Logger
	if c.Config.Environment.Current == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(logger)
	return logger
}

func (c *Container) initRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
}

func (c *Container) initServer() *http.Server {
	return &http.Server{
		Addr:         ":" + c.Config.Server.Port,
		ReadTimeout:  time.Duration(c.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(c.Config.Server.IdleTimeout) * time.Second,
	}
}

func (c *Container) Close() error {
	c.isShuttingDown = true

	if c.RateLimiter != nil {
		c.RateLimiter.Stop()
	}

	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Error("failed to close store", "error", err)
		}
	}

	if c.TracerProvider != nil {
		if err := c.TracerProvider.Shutdown(context.Background()); err != nil {
			c.Logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}

	if c.Redis != nil {
		return c.Redis.Close()
	}

	return nil
}
