// Package dispatch delivers notification copies over out-of-band channels
// (email and SMS). Messages are rendered from templates and sent on a
// bounded worker pool so request handlers never wait on a provider.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------------

// Channel is the delivery channel of a message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

var ErrUnsupportedChannel = errors.New("unsupported delivery channel")

// ---------------------------------------------------------------------------
// Message
// ---------------------------------------------------------------------------

// Message is a single outbound delivery.
type Message struct {
	ID        string     `json:"id"`
	Channel   Channel    `json:"channel"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject,omitempty"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// ---------------------------------------------------------------------------
// Senders
// ---------------------------------------------------------------------------

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSender writes deliveries to the log. It stands in for a provider in
// development and when none is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("channel", "email").Str("to", to).Str("subject", subject).Int("body_len", len(body)).Msg("email delivered")
	return nil
}

func (s LogSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().Str("channel", "sms").Str("to", to).Int("body_len", len(body)).Msg("sms delivered")
	return nil
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// Template is a reusable message layout with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// Built-in template IDs.
const (
	TemplateNotification = "notification"
	TemplateReminder     = "appointment-reminder"
	TemplateWelcome      = "staff-welcome"
)

// TemplateEngine holds templates and renders them.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{
			ID:      TemplateNotification,
			Subject: "{{title}}",
			Body:    "Hello {{name}},\n\n{{message}}",
		},
		{
			ID:      TemplateReminder,
			Subject: "Appointment reminder",
			Body:    "Hello {{name}}, you have an appointment in {{hours}} hours: {{message}}",
		},
		{
			ID:      TemplateWelcome,
			Subject: "Welcome to the care portal",
			Body:    "Hello {{name}}, an account has been created for you. Sign in with {{email}}.",
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render fills a template. Placeholders without data are left as-is.
func (e *TemplateEngine) Render(id string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", id)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		ph := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, ph, v)
		body = strings.ReplaceAll(body, ph, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Stats counts deliveries since start.
type Stats struct {
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Rejected int64 `json:"rejected"`
}

// Dispatcher sends messages on an ants worker pool.
type Dispatcher struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	pool      *ants.Pool
	logger    zerolog.Logger
	wg        sync.WaitGroup

	sent, failed, rejected atomic.Int64
}

// NewDispatcher starts a pool of at most size workers.
func NewDispatcher(email EmailSender, sms SMSSender, templates *TemplateEngine, size int, logger zerolog.Logger) (*Dispatcher, error) {
	logger = logger.With().Str("component", "dispatch").Logger()
	if size <= 0 {
		size = 16
	}
	pool, err := ants.NewPool(size,
		ants.WithExpiryDuration(30*time.Second),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(1000),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error().Interface("panic", p).Msg("delivery worker panicked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatch pool: %w", err)
	}
	return &Dispatcher{email: email, sms: sms, templates: templates, pool: pool, logger: logger}, nil
}

// Templates returns the engine used for rendering.
func (d *Dispatcher) Templates() *TemplateEngine { return d.templates }

// Send delivers m synchronously and records the outcome on it.
func (d *Dispatcher) Send(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	var err error
	switch m.Channel {
	case ChannelEmail:
		err = d.email.SendEmail(ctx, m.Recipient, m.Subject, m.Body)
	case ChannelSMS:
		err = d.sms.SendSMS(ctx, m.Recipient, m.Body)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedChannel, m.Channel)
	}

	if err != nil {
		m.Status = "failed"
		m.Error = err.Error()
		d.failed.Add(1)
		d.logger.Warn().Err(err).Str("message_id", m.ID).Str("channel", string(m.Channel)).Msg("delivery failed")
		return err
	}
	now := time.Now().UTC()
	m.Status = "sent"
	m.SentAt = &now
	d.sent.Add(1)
	return nil
}

// Enqueue hands m to the pool. The delivery outlives ctx cancellation but
// keeps its values.
func (d *Dispatcher) Enqueue(ctx context.Context, m Message) error {
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		d.Send(bg, &m)
	})
	if err != nil {
		d.wg.Done()
		d.rejected.Add(1)
		return fmt.Errorf("enqueue delivery: %w", err)
	}
	return nil
}

// EnqueueTemplate renders a template and enqueues the result.
func (d *Dispatcher) EnqueueTemplate(ctx context.Context, ch Channel, recipient, templateID string, data map[string]string) error {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	return d.Enqueue(ctx, Message{Channel: ch, Recipient: recipient, Subject: subject, Body: body})
}

// Wait blocks until every enqueued delivery has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Stats returns delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Rejected: d.rejected.Load()}
}

// Close waits up to timeout for in-flight deliveries and releases the pool.
func (d *Dispatcher) Close(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn().Msg("deliveries still running at shutdown")
	}
	d.pool.Release()
	return nil
}
