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
	"go.uber.org/zap"

	"markr/internal/attendance"
	"markr/internal/auth"
	"markr/internal/config"
	"markr/internal/faceclient"
	"markr/internal/handler"
	"markr/internal/httpmiddleware"
	"markr/internal/logger"
	"markr/internal/metrics"
	"markr/internal/queue"
	"markr/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn("database not reachable; history disabled", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	backend := faceclient.New(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout, cfg.BackendSkip)
	if cfg.BackendSkip {
		log.Warn("attendance backend disabled; capture returns mock results")
	}

	var snapshots attendance.SnapshotStore
	if cfg.SessionBackend == "redis" {
		snapshots = attendance.NewRedisStore(redisClient.Client, "", cfg.SessionTTL)
	}
	registry := attendance.NewRegistry(snapshots, log)

	svc := attendance.NewService(registry, backend, attendance.Options{
		MaxPhotoBytes:   cfg.PhotoMaxBytes,
		MaxDimension:    cfg.PhotoMaxDimension,
		MaxPixels:       cfg.PhotoMaxPixels,
		ReviewThreshold: cfg.ReviewThreshold,
	}).WithLogger(log).WithMetrics(m)

	if db != nil {
		repo := attendance.NewRepository(db.Client)
		if err := repo.Migrate(ctx); err != nil {
			log.Warn("history migration failed", zap.Error(err))
		}
		svc.WithHistory(repo)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(64)
		notifier := attendance.NewNotifier(backend, log.Named("notifier"), m)
		go func() {
			if err := notifier.Run(ctx, mem); err != nil {
				log.Error("in-process notifier stopped", zap.Error(err))
			}
		}()
		q = mem
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}
	svc.WithPublisher(q)

	go sweep(ctx, svc, cfg.SessionTTL, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(log, "/healthz", "/metrics"))
	r.Use(httpmiddleware.Metrics(m))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", handler.Health(map[string]handler.Check{
		"db":    db.Healthy,
		"redis": redisClient.Healthy,
	}))

	if cfg.IsDev() {
		r.POST("/v1/dev/token", handler.DevToken(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL))
		log.Warn("dev token route enabled")
	}

	v1 := r.Group("/v1",
		auth.OperatorAuth(cfg.JWTSigningKey, cfg.JWTIssuer),
		httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware(),
	)
	handler.NewWorkflows(svc, cfg.PhotoMaxBytes).Register(v1)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

// sweep evicts idle workflows from memory on a fixed interval.
func sweep(ctx context.Context, svc *attendance.Service, ttl time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.Sweep(ttl); n > 0 {
				log.Debug("workflow sweep", zap.Int("evicted", n))
			}
		}
	}
}
