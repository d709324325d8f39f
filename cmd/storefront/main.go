package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mahabub-bd/purepac-storefront/internal/api"
	"github.com/mahabub-bd/purepac-storefront/internal/cartsync"
	"github.com/mahabub-bd/purepac-storefront/internal/checkout"
	"github.com/mahabub-bd/purepac-storefront/internal/coupon"
	h "github.com/mahabub-bd/purepac-storefront/internal/http"
	"github.com/mahabub-bd/purepac-storefront/internal/storage"
)

func main() {
	log := newLogger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}
	cfg := loadConfig(log)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
	if cfg.EnableTracing {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
		otel.SetTracerProvider(tp)
		defer tp.Shutdown(context.Background())
		log.Info("Tracing enabled.")
	} else {
		log.Info("Tracing disabled.")
	}

	ctx := context.Background()
	kv := newStorage(ctx, cfg, log)

	client, err := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
	if err != nil {
		log.WithError(err).Fatal("invalid API_BASE_URL")
	}
	log.Infof("Using backend API at %s", cfg.APIBaseURL)

	engine := cartsync.NewEngine(client, log)
	sessions, err := h.NewSessions(cfg.SessionCacheSize, kv, engine, coupon.NewService(client), log)
	if err != nil {
		log.WithError(err).Fatal("failed to create session registry")
	}

	router := h.NewRouter(h.RouterConfig{
		Cart:           h.NewCartHandler(sessions, client, cfg.RequestTimeout, log),
		Checkout:       h.NewCheckoutHandler(sessions, checkout.NewOrchestrator(client, log), cfg.RequestTimeout, log),
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Storefront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server exited")
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.Level = logrus.InfoLevel
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.Level = lvl
	}
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
	return log
}

// newStorage picks Redis when REDIS_ADDR is set, otherwise guest carts live in process memory.
func newStorage(ctx context.Context, cfg *Config, log logrus.FieldLogger) storage.Storage {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, guest carts are kept in memory")
		return storage.NewMemory()
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	log.Info("Redis ping succeeded")
	return storage.NewRedis(redisClient, cfg.GuestCartTTL)
}
