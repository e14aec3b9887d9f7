package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/config"
	"github.com/shambu-network/shambu/pkg/realtime"
)

func supabaseConfig(realtimeEnabled bool) *config.Config {
	return &config.Config{
		Backend:  config.BackendConfig{Type: config.BackendSupabase},
		Supabase: config.SupabaseConfig{URL: "https://example.supabase.co", Key: "anon", Schema: "public"},
		Realtime: config.RealtimeConfig{Enabled: realtimeEnabled, HeartbeatSeconds: 25},
	}
}

func TestOpen_Supabase(t *testing.T) {
	b, err := Open(context.Background(), supabaseConfig(true), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, config.BackendSupabase, b.Type)
	assert.NotNil(t, b.Profiles)
	assert.NotNil(t, b.Connections)
	assert.NotNil(t, b.SocialProfiles)
	assert.IsType(t, &realtime.PhoenixSource{}, b.Source)
}

func TestOpen_SupabaseRealtimeDisabled(t *testing.T) {
	b, err := Open(context.Background(), supabaseConfig(false), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, b.Source)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{Backend: config.BackendConfig{Type: "mysql"}}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown backend type")
}
