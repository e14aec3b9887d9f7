package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shambu-network/shambu/pkg/auth"
	"github.com/shambu-network/shambu/pkg/backend"
	"github.com/shambu-network/shambu/pkg/config"
	"github.com/shambu-network/shambu/pkg/handlers"
	"github.com/shambu-network/shambu/pkg/logging"
	"github.com/shambu-network/shambu/pkg/mcp"
	"github.com/shambu-network/shambu/pkg/mcp/tools"
	"github.com/shambu-network/shambu/pkg/metrics"
	"github.com/shambu-network/shambu/pkg/middleware"
	"github.com/shambu-network/shambu/pkg/realtime"
	"github.com/shambu-network/shambu/pkg/views"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("backend", cfg.Backend.Type),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Bool("realtime", cfg.Realtime.Enabled),
	)

	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	validator, err := auth.NewValidator(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}
	defer validator.Close()
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(validator, logger.Named("auth")), logger.Named("auth"))

	hub := realtime.NewHub(logger)
	view := views.NewProfileListView(be.Profiles, "", logger)
	defer view.Close()

	// Without a change feed the connection handlers refresh the shared list
	// themselves after each write.
	var notify handlers.ChangeNotifier
	if be.Source == nil {
		notify = func(ctx context.Context, e realtime.Event) {
			if err := view.OnExternalChange(ctx, e); err != nil {
				logger.Warn("Profile list refresh after write failed", zap.Error(err))
			}
		}
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, view, logger).RegisterRoutes(mux)
	handlers.NewProfilesHandler(view, be.Profiles, be.Connections, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewConnectionsHandler(be.Profiles, be.Connections, notify, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewChangesHandler(hub, cfg.Realtime.AllowedOrigins, logger).RegisterRoutes(mux, authMiddleware)
	mux.Handle("GET /metrics", metrics.Handler())

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("shambu", cfg.Version, logger.Named("mcp"))
		tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, view)
		tools.RegisterProfileTools(mcpServer.MCP(), &tools.ProfileToolDeps{
			View:        view,
			Profiles:    be.Profiles,
			Connections: be.Connections,
			Logger:      logger.Named("mcp"),
		})
		mcpHandler := middleware.MCPRequestLogger(logger.Named("mcp"))(mcpServer.NewStreamableHTTPServer())
		mux.Handle("/mcp", authMiddleware.Wrap(mcpHandler))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if be.Source != nil {
		g.Go(func() error { return hub.Run(gctx, be.Source) })
		g.Go(func() error {
			err := view.Watch(gctx, hub)
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("profile list watch stopped: %w", err)
			}
			return nil
		})
	} else if err := view.Fetch(ctx); err != nil {
		// Requests retry while the view stays in the error state.
		logger.Warn("Initial profile fetch failed", zap.Error(err))
	}

	g.Go(func() error {
		logger.Info("Starting shambu",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""),
		)
		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info("Server stopped")
		return nil
	})

	return g.Wait()
}
