package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/internal/attributes"
	"catalog-service/internal/categories"
	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/importer"
	"catalog-service/internal/media"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Catalog API
// @version 1.0.0
// @description Product catalog with category tree, attribute registry and spreadsheet import

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	db, err := config.InitDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithError(err).Fatal("Failed to get database handle")
	}

	readyChecks := map[string]handlers.Pinger{
		"database": sqlDB.PingContext,
	}

	// Redis is optional; without it every read goes to the database
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse Redis URL, caching disabled")
		} else {
			redisClient = redis.NewClient(redisOpts)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.WithError(err).Warn("Failed to connect to Redis, caching disabled")
				redisClient.Close()
				redisClient = nil
			} else {
				logger.Info("Redis connected")
				readyChecks["redis"] = func(ctx context.Context) error {
					return redisClient.Ping(ctx).Err()
				}
			}
			cancel()
		}
	}

	// Events are optional; a nil publisher drops them
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize events publisher, continuing without events")
			eventsPublisher = nil
		} else {
			logger.Info("Events publisher initialized")
		}
	} else {
		logger.Info("NATS_URL not set, skipping event publishing")
	}
	defer eventsPublisher.Close()

	for _, dir := range []string{cfg.StaticImagesPath, cfg.StaticDocsPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.WithError(err).WithField("dir", dir).Fatal("Failed to create static directory")
		}
	}

	entry := logrus.NewEntry(logger)

	// Initialize repositories
	attributesRepo := repository.NewAttributesRepository(db)
	categoriesRepo := repository.NewCategoriesRepository(db, redisClient)
	productsRepo := repository.NewProductsRepository(db, redisClient)
	collectionsRepo := repository.NewCollectionsRepository(db)

	// Initialize core services
	registry := attributes.NewRegistry(attributesRepo, entry)
	categoryService := categories.NewService(categoriesRepo, entry)
	fetcher := media.NewHTTPFetcher(media.FetcherConfig{
		RequestsPerSecond: cfg.MediaFetchRPS,
		Timeout:           cfg.MediaFetchTimeout,
		MaxRetries:        cfg.MediaFetchRetries,
	}, entry)
	mediaCache := media.NewCache(media.Config{
		ImageDir:          cfg.StaticImagesPath,
		DocumentDir:       cfg.StaticDocsPath,
		BaseURL:           cfg.AppURL,
		PublicImagePrefix: cfg.StaticImagesPathAPI,
	}, fetcher, entry)
	pipeline := importer.NewPipeline(registry, mediaCache, categoryService, productsRepo, eventsPublisher, entry)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(readyChecks)
	categoriesHandler := handlers.NewCategoriesHandler(categoryService, eventsPublisher, entry)
	productsHandler := handlers.NewProductsHandler(productsRepo, categoryService, registry, eventsPublisher,
		handlers.PageLimits{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize}, entry)
	attributesHandler := handlers.NewAttributesHandler(registry)
	collectionsHandler := handlers.NewCollectionsHandler(collectionsRepo, categoryService, productsRepo)
	filesHandler := handlers.NewFilesHandler(mediaCache, entry)
	importHandler := handlers.NewImportHandler(pipeline, entry)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.MaxBodySize(cfg.MaxUploadSize))

	// Health check endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.Static("/"+cfg.StaticImagesPathAPI, cfg.StaticImagesPath)

	// In development every request runs as an admin
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)
	if !cfg.IsProduction() {
		authMiddleware = middleware.DevelopmentAuth()
	}
	admin := []gin.HandlerFunc{authMiddleware, middleware.RequireRole(middleware.RoleAdmin)}

	v1 := router.Group("/api/v1")
	{
		categoryRoutes := v1.Group("/categories")
		{
			categoryRoutes.GET("", categoriesHandler.GetCategories)
			categoryRoutes.GET("/tree", categoriesHandler.GetCategoryTree)
			categoryRoutes.GET("/slug/:slug", categoriesHandler.GetCategoryBySlug)
			categoryRoutes.GET("/:id", categoriesHandler.GetCategory)
			categoryRoutes.GET("/:id/descendants", categoriesHandler.GetDescendants)

			protected := categoryRoutes.Group("", admin...)
			protected.POST("", categoriesHandler.CreateCategory)
			protected.PUT("/:id", categoriesHandler.UpdateCategory)
			protected.DELETE("/:id", categoriesHandler.DeleteCategory)
		}

		productRoutes := v1.Group("/products")
		{
			productRoutes.GET("", productsHandler.GetProducts)
			productRoutes.GET("/slug/:slug", productsHandler.GetProductBySlug)
			productRoutes.GET("/:id", productsHandler.GetProduct)
			productRoutes.GET("/:id/variants", productsHandler.GetProductVariants)

			protected := productRoutes.Group("", admin...)
			protected.POST("", productsHandler.CreateProduct)
			protected.PUT("/:id", productsHandler.UpdateProduct)
			protected.DELETE("/:id", productsHandler.DeleteProduct)
			protected.POST("/:id/variants", productsHandler.CreateProductVariant)
			protected.GET("/import/template", importHandler.GetImportTemplate)
			protected.POST("/import", importHandler.ImportProducts)
		}

		variantRoutes := v1.Group("/variants")
		{
			variantRoutes.GET("/:id", productsHandler.GetVariant)

			protected := variantRoutes.Group("", admin...)
			protected.PUT("/:id", productsHandler.UpdateVariant)
			protected.DELETE("/:id", productsHandler.DeleteVariant)
		}

		attributeRoutes := v1.Group("/attributes")
		{
			attributeRoutes.GET("", attributesHandler.GetAttributes)
			attributeRoutes.GET("/:id", attributesHandler.GetAttribute)
		}

		collectionRoutes := v1.Group("/collections")
		{
			collectionRoutes.GET("/:id", collectionsHandler.GetCollection)
			collectionRoutes.POST("", append(admin, collectionsHandler.CreateCollection)...)
		}

		fileRoutes := v1.Group("/files", admin...)
		{
			fileRoutes.POST("/images", filesHandler.UploadImage)
			fileRoutes.POST("/documents", filesHandler.UploadDocument)
			fileRoutes.DELETE("/images/:name", filesHandler.DeleteImage)
			fileRoutes.DELETE("/documents/:name", filesHandler.DeleteDocument)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Catalog service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down catalog service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Catalog service stopped")
}
