// Package backend opens the configured storage backend and its change feed.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/config"
	"github.com/shambu-network/shambu/pkg/database"
	"github.com/shambu-network/shambu/pkg/logging"
	"github.com/shambu-network/shambu/pkg/realtime"
	"github.com/shambu-network/shambu/pkg/repositories"
	"github.com/shambu-network/shambu/pkg/retry"
	"github.com/shambu-network/shambu/pkg/supabase"
)

// Backend bundles the repositories of one storage backend.
type Backend struct {
	Type           string
	Profiles       repositories.ProfileRepository
	Connections    repositories.ConnectionRepository
	SocialProfiles repositories.SocialProfileRepository

	// Source is nil when realtime is disabled.
	Source realtime.Source

	close func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the backend selected by cfg.Backend.Type. PostgreSQL
// connects with start-up retry and applies pending migrations when enabled.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.Backend.Type {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, logger)
	case config.BackendSupabase:
		return openSupabase(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	url := cfg.Database.URL()
	logger.Info("Connecting to PostgreSQL", zap.String("url", logging.SanitizeConnectionString(url)))

	db, err := database.Connect(ctx, &database.Config{
		URL:            url,
		MaxConnections: cfg.Database.MaxConnections,
	}, retry.StartupConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.RunMigrations {
		if err := retry.Do(ctx, retry.StartupConfig(), func() error {
			return database.MigrateURL(url, logger)
		}); err != nil {
			db.Close()
			return nil, err
		}
	}

	b := &Backend{
		Type:           config.BackendPostgres,
		Profiles:       repositories.NewProfileRepository(db),
		Connections:    repositories.NewConnectionRepository(db),
		SocialProfiles: repositories.NewSocialProfileRepository(db),
		close:          db.Close,
	}
	if cfg.Realtime.Enabled {
		listener := database.NewListener(db, cfg.Realtime.Channel, logger.Named("listener"))
		b.Source = realtime.NewPGSource(listener, logger)
	}
	return b, nil
}

func openSupabase(cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	logger.Info("Using Supabase backend", zap.String("url", cfg.Supabase.URL))

	b := &Backend{
		Type:           config.BackendSupabase,
		Profiles:       supabase.NewProfileRepository(client),
		Connections:    supabase.NewConnectionRepository(client),
		SocialProfiles: supabase.NewSocialProfileRepository(client),
	}
	if cfg.Realtime.Enabled {
		b.Source = realtime.NewPhoenixSource(realtime.PhoenixConfig{
			URL:       cfg.Supabase.URL,
			APIKey:    cfg.Supabase.Key,
			Schema:    cfg.Supabase.Schema,
			Heartbeat: cfg.Realtime.Heartbeat(),
		}, logger)
	}
	return b, nil
}
