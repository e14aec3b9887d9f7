package realtime

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Notifier is satisfied by *database.Listener.
type Notifier interface {
	Listen(ctx context.Context, onReady func(), handle func(*pgconn.Notification)) error
}

// PGSource reads change notifications from PostgreSQL LISTEN/NOTIFY.
type PGSource struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewPGSource creates a source over a LISTEN connection.
func NewPGSource(notifier Notifier, logger *zap.Logger) *PGSource {
	return &PGSource{notifier: notifier, logger: logger.Named("pgsource")}
}

func (s *PGSource) Run(ctx context.Context, publish func(Event)) error {
	return s.notifier.Listen(ctx,
		func() { publish(Event{Op: OpResync}) },
		func(n *pgconn.Notification) {
			e, err := ParseNotification(n.Payload)
			if err != nil {
				s.logger.Warn("Ignoring malformed change notification",
					zap.String("channel", n.Channel),
					zap.Error(err),
				)
				return
			}
			publish(e)
		},
	)
}

var _ Source = (*PGSource)(nil)
