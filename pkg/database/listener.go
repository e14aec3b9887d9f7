package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ChangesChannel is the NOTIFY channel written by the change trigger.
const ChangesChannel = "shambu_changes"

// Listener holds a dedicated pool connection in LISTEN mode.
type Listener struct {
	db      *DB
	channel string
	logger  *zap.Logger
}

// NewListener creates a listener for channel. An empty channel means ChangesChannel.
func NewListener(db *DB, channel string, logger *zap.Logger) *Listener {
	if channel == "" {
		channel = ChangesChannel
	}
	return &Listener{db: db, channel: channel, logger: logger}
}

// Listen issues LISTEN and invokes onReady once, then handle for every
// notification until ctx is cancelled or the connection fails.
func (l *Listener) Listen(ctx context.Context, onReady func(), handle func(*pgconn.Notification)) error {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.logger.Info("Listening for changes", zap.String("channel", l.channel))
	if onReady != nil {
		onReady()
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		handle(n)
	}
}
