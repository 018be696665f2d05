package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// NotificationChannel is the Postgres channel the notifications insert
// trigger notifies on.
const NotificationChannel = "notification_inserts"

const listenRetryDelay = 2 * time.Second

// PGListener relays Postgres notifications to a Publisher.
type PGListener struct {
	pool    *pgxpool.Pool
	channel string
	pub     Publisher
	logger  zerolog.Logger
}

func NewPGListener(pool *pgxpool.Pool, channel string, pub Publisher, logger zerolog.Logger) *PGListener {
	return &PGListener{
		pool:    pool,
		channel: channel,
		pub:     pub,
		logger:  logger.With().Str("component", "pg_listener").Str("channel", channel).Logger(),
	}
}

// Run listens until ctx is cancelled, reconnecting after connection errors.
func (l *PGListener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Error().Err(err).Msg("listener stopped, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer func() {
		conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Info().Msg("listening for changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := NotificationEvent([]byte(n.Payload))
		if err != nil {
			l.logger.Warn().Err(err).Msg("skipping malformed payload")
			continue
		}
		if err := l.pub.Publish(ctx, event); err != nil {
			l.logger.Error().Err(err).Str("topic", event.Topic).Msg("publish failed")
		}
	}
}

// NotificationEvent builds the insert event for a notifications row encoded
// as JSON by the insert trigger.
func NotificationEvent(payload []byte) (Event, error) {
	var row struct {
		ID          string    `json:"id"`
		RecipientID string    `json:"recipient_id"`
		CreatedAt   time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(payload, &row); err != nil {
		return Event{}, fmt.Errorf("decode notification row: %w", err)
	}
	if row.RecipientID == "" {
		return Event{}, fmt.Errorf("notification row without recipient_id")
	}

	ts := row.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Event{
		Type:      EventInsert,
		Topic:     NotificationTopic(row.RecipientID),
		Table:     "notifications",
		RecordID:  row.ID,
		Timestamp: ts,
		Data:      json.RawMessage(payload),
	}, nil
}
