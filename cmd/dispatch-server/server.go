package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/config"
	"github.com/ers/dispatch/internal/domain/account"
	"github.com/ers/dispatch/internal/domain/alert"
	"github.com/ers/dispatch/internal/domain/gps"
	"github.com/ers/dispatch/internal/domain/patient"
	"github.com/ers/dispatch/internal/domain/responder"
	"github.com/ers/dispatch/internal/platform/auth"
	"github.com/ers/dispatch/internal/platform/blobstore"
	"github.com/ers/dispatch/internal/platform/db"
	"github.com/ers/dispatch/internal/platform/events"
	"github.com/ers/dispatch/internal/platform/httperr"
	"github.com/ers/dispatch/internal/platform/logging"
	"github.com/ers/dispatch/internal/platform/metrics"
	"github.com/ers/dispatch/internal/platform/middleware"
	"github.com/ers/dispatch/internal/platform/validate"
	"github.com/ers/dispatch/internal/platform/websocket"
)

const (
	tokenIssuer     = "dispatch"
	maxBodySize     = "2M"
	shutdownTimeout = 10 * time.Second
)

// app holds the wired services. The router is built from it so tests can
// assemble one without a database.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	pool    *pgxpool.Pool
	hub     *websocket.Hub
	store   blobstore.Store
	key     []byte

	responders *responder.Service
	alerts     *alert.Service
	accounts   *account.Service
	patients   *patient.Service
	gps        *gps.Service
}

func newApp(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, pub events.Publisher, hub *websocket.Hub, store blobstore.Store, m *metrics.Metrics) *app {
	tx := db.NewTxRunner(pool)
	responderRepo := responder.NewRepoPG(pool)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		pool:    pool,
		hub:     hub,
		store:   store,
		key:     []byte(cfg.JWTSecret),

		responders: responder.NewService(responderRepo, pub, logger),
		alerts:     alert.NewService(alert.NewRepoPG(pool), responderRepo, tx, pub, logger),
		accounts:   account.NewService(account.NewRepoPG(pool), tx, auth.NewIssuer(cfg.JWTSecret, tokenIssuer, cfg.JWTTTL), logger),
		patients:   patient.NewService(patient.NewRepoPG(pool), tx, pub, logger),
		gps:        gps.NewService(gps.NewRepoPG(pool), pub, logger),
	}
	a.alerts.SetMetrics(m)
	a.gps.SetMetrics(m)
	return a
}

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httperr.Handler(a.logger)
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))
	e.Use(middleware.BodyLimit(maxBodySize, "/api/upload"))

	// Auth middleware
	jwtCfg := auth.JWTConfig{Issuer: tokenIssuer, SigningKey: a.key}
	if a.cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rate:      a.cfg.RateLimit,
		Prefix:    "api",
		SkipPaths: []string{"/health", "/metrics", "/ws"},
		OnDeny:    a.metrics.RateLimitDenied,
	}))

	e.GET("/health", db.LivenessHandler())
	e.GET("/health/db", db.HealthHandler(a.pool))
	e.GET("/metrics", a.metrics.Handler())

	websocket.NewHandler(a.hub, a.cfg.CORSOrigins, a.logger).RegisterRoutes(e.Group(""))

	api := e.Group("/api")
	authLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Rate:   a.cfg.AuthRateLimit,
		Prefix: "auth",
		OnDeny: a.metrics.RateLimitDenied,
	})
	account.NewHandler(a.accounts).RegisterRoutes(api, authLimit)
	responder.NewHandler(a.responders).RegisterRoutes(api)
	alert.NewHandler(a.alerts).RegisterRoutes(api)
	patient.NewHandler(a.patients).RegisterRoutes(api)
	gps.NewHandler(a.gps).RegisterRoutes(api)

	files := e.Group(filesPrefix(a.cfg.UploadPublicBase))
	blobstore.NewHandler(a.store, a.logger, a.metrics.Uploaded).RegisterRoutes(api, files)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: cfg.IsDev()})

	if cfg.JWTSecret == "" && cfg.IsDev() {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.JWTSecret = secret
		logger.Warn().Msg("JWT_SECRET not set; using a random key, tokens will not survive a restart")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Event fan-out: websocket subscribers always, Redis stream when configured.
	hub := websocket.NewHub(logger)
	publishers := events.Multi{hub}
	if cfg.RedisURL != "" {
		client, err := events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		publishers = append(publishers, events.NewRedisStream(client, cfg.EventStream))
		logger.Info().Str("stream", cfg.EventStream).Msg("publishing events to redis")
	}

	store, err := newUploadStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	a := newApp(cfg, logger, pool, publishers, hub, store, m)
	e := a.router()

	var sweeper *alert.Sweeper
	if cfg.AssignmentTimeout > 0 {
		sweeper = alert.NewSweeper(a.alerts, cfg.AssignmentTimeout, logger)
		if err := sweeper.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	if sweeper != nil {
		sweeper.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newUploadStore picks the backend named by UPLOAD_BACKEND. In development
// an unusable upload directory degrades to an in-memory store.
func newUploadStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blobstore.Store, error) {
	if cfg.UploadBackend == "minio" {
		store, err := blobstore.NewMinioStore(ctx, blobstore.MinioConfig{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Bucket:     cfg.MinioBucket,
			UseSSL:     cfg.MinioUseSSL,
			PublicBase: cfg.UploadPublicBase,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to minio: %w", err)
		}
		return store, nil
	}

	store, err := blobstore.NewLocalStore(cfg.UploadDir, cfg.UploadPublicBase)
	if err != nil {
		if cfg.IsDev() {
			logger.Warn().Err(err).Msg("upload dir unusable; keeping uploads in memory")
			return blobstore.NewMemoryStore(cfg.UploadPublicBase), nil
		}
		return nil, err
	}
	return store, nil
}

// filesPrefix extracts the route prefix uploads are served under. The
// public base may be a full URL when a proxy fronts the server.
func filesPrefix(publicBase string) string {
	p := publicBase
	if u, err := url.Parse(publicBase); err == nil && u.Host != "" {
		p = u.Path
	}
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return "/uploads"
	}
	return p
}

func randomSecret() (string, error) {
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
