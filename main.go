package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"bibliogoya-backend/internal/apidocs"
	"bibliogoya-backend/internal/catalog"
	"bibliogoya-backend/internal/genres"
	"bibliogoya-backend/internal/lending"
	"bibliogoya-backend/internal/members"
	"bibliogoya-backend/internal/platform/auth"
	"bibliogoya-backend/internal/platform/db"
	"bibliogoya-backend/internal/platform/identity"
	"bibliogoya-backend/internal/platform/logging"
	"bibliogoya-backend/internal/platform/middleware"
	"bibliogoya-backend/internal/reports"
)

func main() {
	// 設定読み込み
	path := db.DefaultConfigPath
	if v := os.Getenv("BIBLIOGOYA_CONFIG"); v != "" {
		path = v
	}
	cfg, err := db.LoadConfig(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("starting", "mode", cfg.Mode, "version", cfg.Version, "driver", cfg.DB.Driver)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *db.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	logger.Info("connected to DB", "dbname", cfg.DB.DBName, "path", cfg.DB.Path)

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		// dev のみ（release は Validate で弾く）。再起動でトークンは無効になる
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		logger.Warn("auth.jwt_secret is empty; using an ephemeral secret")
	}

	r := newRouter(cfg, conn, logger, secret)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.Certificate.Cert != "" && cfg.Certificate.Key != "" {
			certFile := fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Cert)
			keyFile := fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Key)
			logger.Info("listening", "addr", cfg.Server.Addr, "tls", true)
			errCh <- srv.ListenAndServeTLS(certFile, keyFile)
			return
		}
		logger.Info("listening", "addr", cfg.Server.Addr, "tls", false)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *db.Config, conn *sqlx.DB, logger *slog.Logger, secret []byte) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(logger))
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
			ExposeHeaders:    []string{"Content-Length", "Location", middleware.HeaderRequestID},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	lendingSvc := lending.NewService(conn, lending.WithLogger(logger))
	catalogSvc := catalog.NewService(conn, logger)
	genreSvc := genres.NewService(conn, logger)
	memberSvc := members.NewService(conn, logger)
	reportSvc := reports.NewService(conn, logger)
	authSvc := auth.NewService(conn, secret, cfg.Auth.TokenTTL, logger)

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	apidocs.Register(r)

	// /api/v1
	api := r.Group("/api/v1")
	api.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	auth.RegisterRoutes(api, authSvc)

	member := api.Group("", auth.RequireAuth(secret))
	lending.RegisterMemberRoutes(member, lendingSvc)
	catalog.RegisterRoutes(member, catalogSvc)
	genres.RegisterRoutes(member, genreSvc)
	auth.RegisterMemberRoutes(member, authSvc)

	admin := api.Group("/admin", auth.RequireAuth(secret), auth.RequireRole(identity.RoleAdministrator))
	lending.RegisterAdminRoutes(admin, lendingSvc)
	catalog.RegisterAdminRoutes(admin, catalogSvc)
	genres.RegisterAdminRoutes(admin, genreSvc)
	members.RegisterAdminRoutes(admin, memberSvc)
	reports.RegisterAdminRoutes(admin, reportSvc)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "no route for " + c.Request.URL.Path}})
	})
	return r
}
