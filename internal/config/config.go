package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"catalog-service/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// NATS (events are disabled when empty)
	NATSURL string

	// Server
	Port        string
	Environment string
	CORSOrigins string

	// JWT
	JWTSecret string

	// Media
	AppURL              string
	StaticImagesPath    string
	StaticDocsPath      string
	StaticImagesPathAPI string
	MediaFetchRPS       float64
	MediaFetchTimeout   time.Duration
	MediaFetchRetries   int
	MaxUploadSize       int64

	// Pagination
	DefaultPageSize int
	MaxPageSize     int
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", ""),
		NATSURL:  getEnv("NATS_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: getEnv("CORS_ORIGINS", ""),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key"),

		AppURL:              getEnv("APP_URL", "http://localhost:8080"),
		StaticImagesPath:    getEnv("STATIC_IMAGES_PATH", "./static/images"),
		StaticDocsPath:      getEnv("STATIC_DOCS_PATH", "./static/docs"),
		StaticImagesPathAPI: getEnv("STATIC_IMAGES_PATH_API", "static/images"),
		MediaFetchRPS:       getEnvFloat("MEDIA_FETCH_RPS", 5),
		MediaFetchTimeout:   getEnvDuration("MEDIA_FETCH_TIMEOUT", 30*time.Second),
		MediaFetchRetries:   getEnvInt("MEDIA_FETCH_RETRIES", 3),
		MaxUploadSize:       int64(getEnvInt("MAX_UPLOAD_SIZE", 20<<20)),

		// Storefront pages never exceed 60 items.
		DefaultPageSize: getEnvInt("DEFAULT_PAGE_SIZE", 12),
		MaxPageSize:     getEnvInt("MAX_PAGE_SIZE", 60),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func InitDB(cfg *Config, log *logrus.Logger) (*gorm.DB, error) {
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Error
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.AttributeKey{},
		&models.AttributeValue{},
		&models.Attribute{},
		&models.Category{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Collection{},
	); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Info("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
