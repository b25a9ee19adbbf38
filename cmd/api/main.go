package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taxdocs/docs"
	"taxdocs/internal/auth"
	"taxdocs/internal/cache"
	"taxdocs/internal/config"
	"taxdocs/internal/database"
	"taxdocs/internal/database/migration"
	handlers "taxdocs/internal/http/handler"
	"taxdocs/internal/http/middleware"
	"taxdocs/internal/logging"
	"taxdocs/internal/otel"
	"taxdocs/internal/repository/postgres"
	"taxdocs/internal/service"
	"taxdocs/internal/storage"
)

// Multipart framing around a maximum-size file stays well under the extra megabyte.
const bodyLimit = int(service.MaxUploadSize) + 1<<20

// @title Tax Document API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := cfg.Location()

	logger := logging.New(os.Stdout, cfg.LogLevel, loc)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		fatal(logger, "failed to initialize tracing", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		fatal(logger, "failed to migrate database", err)
	}

	// Local filesystem by default; MinIO/S3 when STORAGE_DRIVER=minio
	blobStore, err := storage.New(cfg.Storage)
	if err != nil {
		fatal(logger, "failed to initialize blob storage", err)
	}

	listCache, closeCache, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		fatal(logger, "failed to connect to redis", err)
	}
	defer closeCache()

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		fatal(logger, "failed to initialize token verification", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svcMetrics, err := service.NewMetrics(reg)
	if err != nil {
		fatal(logger, "failed to register service metrics", err)
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		fatal(logger, "failed to register http metrics", err)
	}

	// Initialize repositories and services
	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(blobStore, docRepo,
		service.WithCache(listCache),
		service.WithLogger(logger),
		service.WithMetrics(svcMetrics),
	)

	if cfg.Sweep.Interval > 0 {
		sweeper := service.NewOrphanSweeper(blobStore, docRepo, cfg.Sweep.GracePeriod, logger, svcMetrics)
		go sweeper.Run(ctx, cfg.Sweep.Interval)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(recover.New())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, docSvc, verifier)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("server_starting", "addr", addr, "storage_driver", cfg.Storage.Driver)
		if err := app.Listen(addr); err != nil {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server_shutting_down")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
