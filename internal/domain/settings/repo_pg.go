package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/portal/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const settingsCols = `id, user_id, user_role, email_notifications, app_notifications, sms_notifications,
	reminder_hours, theme, language, timezone, calendar_view, created_at, updated_at`

func (r *repoPG) scanRow(row pgx.Row) (*Settings, error) {
	var s Settings
	err := row.Scan(&s.ID, &s.UserID, &s.UserRole, &s.EmailNotifications, &s.AppNotifications,
		&s.SMSNotifications, &s.ReminderHours, &s.Theme, &s.Language, &s.Timezone, &s.CalendarView,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) Get(ctx context.Context, userID uuid.UUID) (*Settings, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+settingsCols+` FROM settings WHERE user_id = $1`, userID))
}

func (r *repoPG) Provision(ctx context.Context, s *Settings) (*Settings, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO settings (id, user_id, user_role, email_notifications, app_notifications, sms_notifications,
			reminder_hours, theme, language, timezone, calendar_view)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO NOTHING`,
		s.ID, s.UserID, s.UserRole, s.EmailNotifications, s.AppNotifications, s.SMSNotifications,
		s.ReminderHours, s.Theme, s.Language, s.Timezone, s.CalendarView)
	if err != nil {
		return nil, fmt.Errorf("provision settings: %w", err)
	}
	return r.Get(ctx, s.UserID)
}

func (r *repoPG) Update(ctx context.Context, s *Settings) error {
	updated, err := r.scanRow(r.conn(ctx).QueryRow(ctx, `
		UPDATE settings SET
			email_notifications = $2, app_notifications = $3, sms_notifications = $4,
			reminder_hours = $5, theme = $6, language = $7, timezone = $8, calendar_view = $9,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+settingsCols,
		s.UserID, s.EmailNotifications, s.AppNotifications, s.SMSNotifications,
		s.ReminderHours, s.Theme, s.Language, s.Timezone, s.CalendarView,
	))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update settings: %w", err)
	}
	*s = *updated
	return nil
}
