package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/telehealth-api/internal/blob"
	"github.com/harentsoaR/telehealth-api/internal/cache"
	"github.com/harentsoaR/telehealth-api/internal/chat"
	"github.com/harentsoaR/telehealth-api/internal/config"
	"github.com/harentsoaR/telehealth-api/internal/handlers"
	"github.com/harentsoaR/telehealth-api/internal/jobs"
	"github.com/harentsoaR/telehealth-api/internal/logging"
	"github.com/harentsoaR/telehealth-api/internal/metrics"
	"github.com/harentsoaR/telehealth-api/internal/middleware"
	"github.com/harentsoaR/telehealth-api/internal/routes"
	"github.com/harentsoaR/telehealth-api/internal/services"
	"github.com/harentsoaR/telehealth-api/internal/store"
	"github.com/harentsoaR/telehealth-api/internal/store/memstore"
	"github.com/harentsoaR/telehealth-api/internal/store/mongostore"
	"github.com/harentsoaR/telehealth-api/internal/utils"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", "production")
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env)
	if envErr != nil {
		logger.Info().Msg("No .env file found, relying on environment variables.")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString() + uuid.NewString()
		logger.Warn().Msg("JWT_SECRET is NOT SET, using a random secret; tokens will not survive a restart")
	}

	// --- Storage ---
	st, disconnect := openStore(cfg, logger)
	defer disconnect()

	ratingCache := cache.RatingCache(cache.Noop{})
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, rating cache will fall back to the store")
		}
		cancel()
		ratingCache = cache.NewRedisRatingCache(redisClient, cfg.RatingCacheTTL)
	}

	blobs := openBlobs(cfg, logger)

	// --- Services ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	notificationSvc := services.NewNotificationService(cfg.TextbeltAPIKey, cfg.TextbeltURL, logger)
	if !notificationSvc.Enabled() {
		logger.Info().Msg("TEXTBELT_API_KEY is NOT SET, SMS notifications are disabled")
	}
	hub := chat.NewHub(logger.With().Str("component", "chat").Logger(), cfg.CORSOrigins...)
	jwt := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	h := &handlers.Handler{
		Auth:    services.NewAuthService(st.Users, jwt, utils.DefaultHashCost),
		Booking: services.NewBookingService(st, notificationSvc, m),
		Ratings: services.NewRatingService(st, ratingCache),
		Doctors: services.NewDoctorService(st, ratingCache),
		Records: services.NewHealthRecordService(st.HealthRecords, blobs),
		Chat:    services.NewChatService(st, hub),
		Hub:     hub,
	}

	reminders := jobs.NewReminderScheduler(st, notificationSvc, logger)
	if cfg.RemindersEnabled {
		if err := reminders.Start(cfg.ReminderSchedule); err != nil {
			logger.Fatal().Err(err).Msg("failed to start reminder job")
		}
		logger.Info().Str("schedule", cfg.ReminderSchedule).Msg("reminder job scheduled")
	}

	// --- Gin Router ---
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = services.MaxAttachments * services.MaxAttachmentSize
	r.Use(
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
		middleware.Metrics(m),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
		}),
	)
	routes.Routes(r, h, jwt, reg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("blob", cfg.BlobDriver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	select {
	case <-reminders.Stop().Done():
	case <-ctx.Done():
		logger.Warn().Msg("reminder job still running at shutdown")
	}
	hub.Close()
	notificationSvc.Wait()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close")
		}
	}
}

// openStore returns the configured store and a function releasing it.
func openStore(cfg *config.Config, logger zerolog.Logger) (*store.Store, func()) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn().Msg("using the in-memory store; data is lost on restart")
		return memstore.New(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal().Err(err).Msg("Failed to reach MongoDB")
	}
	db := client.Database(cfg.MongoDatabase)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create indexes")
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("Successfully connected to MongoDB!")

	return mongostore.New(db), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Error().Err(err).Msg("mongo disconnect")
		}
	}
}

func openBlobs(cfg *config.Config, logger zerolog.Logger) blob.Store {
	if cfg.BlobDriver == config.BlobS3 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := blob.NewS3Client(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to configure S3")
		}
		return blob.NewS3Store(client, cfg.S3Bucket)
	}

	local, err := blob.NewLocalStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to prepare upload directory")
	}
	return local
}
