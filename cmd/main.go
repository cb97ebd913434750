package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/kelseyhightower/envconfig"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mediagrab/internal/cache"
	"mediagrab/internal/handlers"
	"mediagrab/internal/history"
	"mediagrab/internal/mirror"
	"mediagrab/internal/models"
	"mediagrab/internal/parsers"
	"mediagrab/internal/storage"
	"mediagrab/internal/utils"
	"mediagrab/internal/workers"
)

type Config struct {
	DBURL         string `envconfig:"DB_URL" default:"host=localhost user=user password=pass dbname=mediagrab port=5432 sslmode=disable"`
	ListenAddr    string `envconfig:"LISTEN_ADDR" default:":8080"`
	SessionSecret string `envconfig:"SESSION_SECRET" default:"secret-key-change-in-production"`
	AdminUser     string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin"`

	SizeCeiling int64 `envconfig:"SIZE_CEILING_BYTES" default:"20971520"`
	MaxWorkers  int   `envconfig:"MAX_WORKERS" default:"5"`

	DeliveryWebhook string `envconfig:"DELIVERY_WEBHOOK" default:"http://localhost:9090/deliver"`

	YouTubeEnabled bool `envconfig:"YOUTUBE_ENABLED" default:"true"`
	TikTokEnabled  bool `envconfig:"TIKTOK_ENABLED" default:"true"`
	WebEnabled     bool `envconfig:"WEB_ENABLED" default:"true"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"fs"`
	StoragePath    string `envconfig:"STORAGE_PATH" default:"./storage"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Prefix       string `envconfig:"S3_PREFIX"`
	S3PathStyle    bool   `envconfig:"S3_PATH_STYLE"`

	CacheBackend  string        `envconfig:"CACHE_BACKEND" default:"db"`
	CacheCapacity int           `envconfig:"CACHE_CAPACITY" default:"4096"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"720h"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx := context.Background()

	// Shared pgx pool for both River and GORM
	pgxConfig, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}
	dbPool, err := pgxpool.NewWithConfig(ctx, pgxConfig)
	if err != nil {
		log.Fatal("Failed to create database pool:", err)
	}
	defer dbPool.Close()

	sqlDB := stdlib.OpenDBFromPool(dbPool)
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to initialize GORM with shared pool:", err)
	}

	db.AutoMigrate(&models.User{}, &models.CachedDelivery{}, &models.HistoryEntry{}, &models.Report{}, &models.Delivery{})

	// Default admin user
	var user models.User
	if db.First(&user).Error == gorm.ErrRecordNotFound {
		hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal(err)
		}
		user = models.User{Username: cfg.AdminUser, PasswordHash: string(hashed)}
		db.Create(&user)
		log.Printf("Created default admin user: %s", cfg.AdminUser)
	}

	storageInstance, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	deliveryCache, err := buildCache(db, cfg)
	if err != nil {
		log.Fatal("Failed to initialize cache:", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	// Registration order is the dispatch order; the web parser accepts
	// everything and must stay last.
	registryParsers := []parsers.Parser{}
	yt := parsers.NewYouTubeParser(cfg.SizeCeiling)
	yt.Enabled = cfg.YouTubeEnabled
	registryParsers = append(registryParsers, yt)
	tt := parsers.NewTikTokParser(cfg.SizeCeiling)
	tt.Enabled = cfg.TikTokEnabled
	registryParsers = append(registryParsers, tt)
	og := parsers.NewOpenGraphParser()
	og.Enabled = cfg.WebEnabled
	registryParsers = append(registryParsers, og)
	registry := parsers.NewRegistry(httpClient, registryParsers...)

	mediaMirror := mirror.New(storageInstance, httpClient, cfg.SizeCeiling)
	historyStore := history.NewStore(db)
	reporter := history.NewReporter(db)
	deliverer := workers.NewWebhookDeliverer(cfg.DeliveryWebhook)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewDeliveryWorker(db, deliveryCache, historyStore, mediaMirror, deliverer))

	riverClient, err := river.NewClient(riverpgxv5.New(dbPool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers: riverWorkers,
	})
	if err != nil {
		log.Fatal("Failed to create River client:", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		log.Fatal("Failed to start River client:", err)
	}
	defer riverClient.Stop(ctx)

	// Expired cache rows are swept in the background; lookups already
	// treat them as absent.
	if gc, ok := deliveryCache.(*cache.GormCache); ok {
		go func() {
			for {
				time.Sleep(time.Hour)
				if err := utils.WithTimeout(time.Minute, gc.Sweep); err != nil {
					slog.Error("Cache sweep failed", "error", err)
				}
			}
		}()
	}

	r := gin.Default()
	r.LoadHTMLGlob("templates/*.html")
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("session", store))

	r.GET("/health", handlers.HealthCheckHandler(db))
	r.GET("/login", handlers.LoginGet)
	r.POST("/login", func(c *gin.Context) { handlers.LoginPost(c, db) })
	r.GET("/admin", func(c *gin.Context) { handlers.AdminGet(c, db, reporter) })
	r.POST("/admin/delivery/:id/retry", func(c *gin.Context) { handlers.RetryDelivery(c, db, riverClient) })
	r.GET("/admin/delivery/:id/log", func(c *gin.Context) { handlers.GetDeliveryLog(c, db) })
	r.POST("/api/v1/resolve", func(c *gin.Context) { handlers.ApiResolve(c, db, registry, riverClient) })
	r.GET("/api/v1/history", func(c *gin.Context) { handlers.ApiHistory(c, historyStore) })
	r.GET("/api/v1/delivery/:id", func(c *gin.Context) { handlers.ApiDeliveryStatus(c, db) })
	r.POST("/api/v1/report", func(c *gin.Context) { handlers.ApiReport(c, reporter) })
	r.GET("/api/v1/media/:key", func(c *gin.Context) { handlers.ServeMedia(c, storageInstance, db) })

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		log.Printf("Starting server on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func buildStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case "s3":
		s3Storage, err := storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			ForcePathStyle:  cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewZSTDStorage(s3Storage), nil
	default:
		return storage.NewZSTDStorage(storage.NewFSStorage(cfg.StoragePath)), nil
	}
}

func buildCache(db *gorm.DB, cfg Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemoryCache(cfg.CacheCapacity)
	default:
		return cache.NewGormCache(db, cfg.CacheTTL), nil
	}
}
