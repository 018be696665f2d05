package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/dispatch"
	"github.com/ehr/portal/internal/platform/realtime"
	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
	"github.com/ehr/portal/pkg/pagination"
)

// ErrNoFeed is returned by Subscribe when no realtime hub is attached.
var ErrNoFeed = errors.New("notification: realtime feed is not configured")

// Subscriber registers callbacks on realtime topics.
type Subscriber interface {
	Subscribe(topic string, fn func(realtime.Event)) *realtime.Subscription
}

// Preferences reports which out-of-app channels a user wants.
type Preferences interface {
	Channels(ctx context.Context, userID uuid.UUID, role string) (email, sms bool, err error)
}

// ContactResolver finds where to email or text a recipient.
type ContactResolver interface {
	Contact(ctx context.Context, id uuid.UUID, role string) (Contact, error)
}

// Mailer queues templated messages.
type Mailer interface {
	EnqueueTemplate(ctx context.Context, ch dispatch.Channel, recipient, templateID string, data map[string]string) error
}

type Service struct {
	repo     Repository
	validate *validation.Validator
	logger   zerolog.Logger

	feed      Subscriber
	publisher realtime.Publisher
	prefs     Preferences
	contacts  ContactResolver
	mailer    Mailer
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validation.New(),
		logger:   logger.With().Str("service", "notification").Logger(),
	}
}

// SetFeed attaches the hub subscriptions are taken from.
func (s *Service) SetFeed(feed Subscriber) { s.feed = feed }

// SetPublisher makes CreateNotification publish inserts itself. Leave it
// unset when the database trigger feeds the hub.
func (s *Service) SetPublisher(p realtime.Publisher) { s.publisher = p }

// SetDelivery enables email and SMS copies of new notifications.
func (s *Service) SetDelivery(prefs Preferences, contacts ContactResolver, mailer Mailer) {
	s.prefs, s.contacts, s.mailer = prefs, contacts, mailer
}

func (s *Service) FetchNotification(ctx context.Context, id uuid.UUID) result.Result[*Notification] {
	return result.Capture(s.logger, "fetch_notification", func() (*Notification, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *Service) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit, offset int) result.Result[pagination.Page[*Notification]] {
	return result.Capture(s.logger, "list_notifications", func() (pagination.Page[*Notification], error) {
		p := pagination.New(limit, offset)
		items, total, err := s.repo.List(ctx, recipientID, p.Limit, p.Offset)
		if err != nil {
			return pagination.Page[*Notification]{}, err
		}
		return pagination.NewPage(items, total, p), nil
	})
}

// CreateNotification stores n, publishes it to the recipient's topic when a
// publisher is set, and queues email/SMS copies the recipient opted into.
// Publish and delivery problems are logged; the insert still succeeds.
func (s *Service) CreateNotification(ctx context.Context, n *Notification) result.Result[*Notification] {
	res := result.Capture(s.logger, "create_notification", func() (*Notification, error) {
		if n == nil {
			return nil, errors.New("notification payload is required")
		}
		n.Title = strings.TrimSpace(n.Title)
		n.Message = strings.TrimSpace(n.Message)
		n.RecipientRole = strings.ToLower(strings.TrimSpace(n.RecipientRole))
		if n.Type == "" {
			n.Type = TypeInfo
		}
		if err := s.validate.Struct(n); err != nil {
			return nil, err
		}
		n.ID = uuid.Nil
		n.IsRead = false
		if err := s.repo.Create(ctx, n); err != nil {
			return nil, err
		}
		return n, nil
	})
	if res.Success() {
		s.publish(ctx, res.Data())
		s.deliver(ctx, res.Data())
	}
	return res
}

func (s *Service) publish(ctx context.Context, n *Notification) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode notification event")
		return
	}
	err = s.publisher.Publish(ctx, realtime.Event{
		Type:      realtime.EventInsert,
		Topic:     realtime.NotificationTopic(n.RecipientID.String()),
		Table:     "notifications",
		RecordID:  n.ID.String(),
		Timestamp: n.CreatedAt,
		Data:      data,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("publish notification")
	}
}

func (s *Service) deliver(ctx context.Context, n *Notification) {
	if s.prefs == nil || s.contacts == nil || s.mailer == nil {
		return
	}
	log := s.logger.With().Str("notification_id", n.ID.String()).Logger()

	wantEmail, wantSMS, err := s.prefs.Channels(ctx, n.RecipientID, n.RecipientRole)
	if err != nil {
		log.Warn().Err(err).Msg("load delivery preferences")
		return
	}
	if !wantEmail && !wantSMS {
		return
	}
	contact, err := s.contacts.Contact(ctx, n.RecipientID, n.RecipientRole)
	if err != nil {
		log.Warn().Err(err).Msg("resolve recipient contact")
		return
	}

	data := map[string]string{"name": contact.Name, "title": n.Title, "message": n.Message}
	if wantEmail && contact.Email != "" {
		if err := s.mailer.EnqueueTemplate(ctx, dispatch.ChannelEmail, contact.Email, dispatch.TemplateNotification, data); err != nil {
			log.Warn().Err(err).Msg("queue notification email")
		}
	}
	if wantSMS && contact.Phone != "" {
		if err := s.mailer.EnqueueTemplate(ctx, dispatch.ChannelSMS, contact.Phone, dispatch.TemplateNotification, data); err != nil {
			log.Warn().Err(err).Msg("queue notification sms")
		}
	}
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) result.Result[*Notification] {
	return result.Capture(s.logger, "mark_read", func() (*Notification, error) {
		return s.repo.MarkRead(ctx, id)
	})
}

// MarkAllRead returns how many notifications were unread.
func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) result.Result[int] {
	return result.Capture(s.logger, "mark_all_read", func() (int, error) {
		return s.repo.MarkAllRead(ctx, recipientID)
	})
}

func (s *Service) DeleteNotification(ctx context.Context, id uuid.UUID) result.Result[*Notification] {
	return result.Capture(s.logger, "delete_notification", func() (*Notification, error) {
		n, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return nil, err
		}
		return n, nil
	})
}

func (s *Service) UnreadCount(ctx context.Context, recipientID uuid.UUID) result.Result[int] {
	return result.Capture(s.logger, "unread_count", func() (int, error) {
		return s.repo.UnreadCount(ctx, recipientID)
	})
}

// Subscribe calls fn once for every notification inserted for recipientID,
// in arrival order. Events that do not decode are logged and skipped. The
// caller must Close the returned subscription.
func (s *Service) Subscribe(recipientID uuid.UUID, fn func(*Notification)) (*realtime.Subscription, error) {
	if s.feed == nil {
		return nil, ErrNoFeed
	}
	if fn == nil {
		return nil, errors.New("notification: callback is required")
	}
	return s.feed.Subscribe(realtime.NotificationTopic(recipientID.String()), func(e realtime.Event) {
		if e.Type != realtime.EventInsert {
			return
		}
		var n Notification
		if err := json.Unmarshal(e.Data, &n); err != nil {
			s.logger.Warn().Err(err).Str("topic", e.Topic).Msg("decode notification event")
			return
		}
		fn(&n)
	}), nil
}
