package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"waitroom-intake/pkg/logging"
)

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// notifyRecord issues NOTIFY on channel with the record id as payload.
// NOTIFY takes no bind parameters, so both parts are quoted here.
func notifyRecord(ctx context.Context, tx sqlExecer, channel, id string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("NOTIFY %s, %s", pq.QuoteIdentifier(channel), pq.QuoteLiteral(id)))
	return err
}

// Notifier wraps LISTEN on the record channel so reviewer dashboards can
// follow new questionnaires as they are saved.
type Notifier struct {
	DSN     string
	Channel string
	Logger  *logging.Logger
}

// NewNotifier constructs a new Notifier.  The channel should match the
// POSTGRES_NOTIFY_CHANNEL environment variable.
func NewNotifier(dsn, channel string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{DSN: dsn, Channel: channel, Logger: logger}
}

// Listen yields record ids as they are announced.  The returned channel is
// closed once ctx is cancelled.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	l := pq.NewListener(n.DSN, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.Logger.Warn("db: listener event", "event", int(ev), "error", err)
		}
	})
	if err := l.Listen(n.Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("db: listen %s: %w", n.Channel, err)
	}

	ch := make(chan string)
	go func() {
		defer func() {
			_ = l.Close()
			close(ch)
		}()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case note := <-l.Notify:
				// nil after a reconnect; anything sent meanwhile is lost
				if note == nil {
					continue
				}
				select {
				case ch <- note.Extra:
				case <-ctx.Done():
					return
				}
			case <-ticker.C:
				go func() {
					if err := l.Ping(); err != nil {
						n.Logger.Warn("db: listener ping failed", "error", err)
					}
				}()
			}
		}
	}()
	return ch, nil
}
