package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) *Config {
	return &Config{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestReconnectConfig_Backoff(t *testing.T) {
	cfg := ReconnectConfig()
	for attempt := 1; attempt <= 10; attempt++ {
		d := cfg.Backoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 75*time.Second, "capped at 60s plus jitter")
	}
	assert.Less(t, cfg.Backoff(1), 2*time.Second)
}

func TestBackoff_Exponential(t *testing.T) {
	cfg := &Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, cfg.Backoff(3))
	assert.Equal(t, time.Second, cfg.Backoff(5))
	assert.Equal(t, time.Second, cfg.Backoff(50))
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	want := errors.New("persistent error")
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return want
	})
	assert.Equal(t, want, err)
	assert.Equal(t, 3, calls, "1 initial attempt + 2 retries")
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	calls := 0
	err := Do(ctx, cfg, func() error {
		calls++
		return errors.New("error")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDoWithResult_StopsOnPermanentError(t *testing.T) {
	cfg := fastConfig(5)
	cfg.ShouldRetry = IsRetryable

	calls := 0
	_, err := DoWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDoWithResult_NilConfig(t *testing.T) {
	v, err := DoWithResult(context.Background(), nil, func() (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.True(t, v)
}

func TestApplyJitter(t *testing.T) {
	assert.Equal(t, time.Second, applyJitter(time.Second, 0))
	for range 50 {
		d := applyJitter(time.Second, 0.1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"wrapped timeout", fmt.Errorf("failed to ping: %w", errors.New("i/o timeout")), true},
		{"starting up", &pgconn.PgError{Code: "57P03"}, true},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, true},
		{"bad password", &pgconn.PgError{Code: "28P01"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"cancelled", context.Canceled, false},
		{"gateway", errors.New("unexpected status 503"), true},
		{"other", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
