package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/portal/internal/platform/result"
)

// GenericSubmitError is shown when a failure carries no usable message.
const GenericSubmitError = "Something went wrong. Please try again."

// DefaultSuccessTTL is how long a success message stays visible.
const DefaultSuccessTTL = 3 * time.Second

// ErrBusy is returned when Submit is called while a submission is running.
var ErrBusy = errors.New("form: submission already in progress")

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// Config wires a Modal to its payload type and remote operations.
type Config[T any] struct {
	// Build converts the form values into the payload.
	Build func(values map[string]string) (T, error)
	// Prepare adjusts the payload once, right before it is sent.
	Prepare func(mode Mode, payload *T)
	Create  func(ctx context.Context, payload T) result.Result[T]
	Update  func(ctx context.Context, id string, payload T) result.Result[T]
	// Refresh reloads the caller's view after a successful submit.
	Refresh        func()
	SuccessMessage string
	SuccessTTL     time.Duration
	Logger         zerolog.Logger
}

// Submission reports what a Submit call did. When Fields is non-empty the
// remote operation was not called.
type Submission[T any] struct {
	Fields map[string]string
	Called bool
	Result result.Result[T]
}

// Modal runs the create/edit submit workflow over a Form.
type Modal[T any] struct {
	form *Form
	cfg  Config[T]

	mu        sync.Mutex
	mode      Mode
	editID    string
	open      bool
	busy      bool
	submitErr string
	success   string
	timer     *time.Timer
}

func NewModal[T any](f *Form, cfg Config[T]) *Modal[T] {
	if cfg.SuccessTTL <= 0 {
		cfg.SuccessTTL = DefaultSuccessTTL
	}
	return &Modal[T]{form: f, cfg: cfg}
}

func (m *Modal[T]) Form() *Form { return m.form }

// OpenCreate opens the modal with an empty form.
func (m *Modal[T]) OpenCreate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.form.Reset()
	m.mode = ModeCreate
	m.editID = ""
	m.submitErr = ""
	m.open = true
}

// OpenEdit opens the modal on an existing record.
func (m *Modal[T]) OpenEdit(id string, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.form.Reset()
	m.form.Load(values)
	m.mode = ModeEdit
	m.editID = id
	m.submitErr = ""
	m.open = true
}

// Close hides the modal without touching the form values.
func (m *Modal[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
}

func (m *Modal[T]) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Modal[T]) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *Modal[T]) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Modal[T]) SubmitError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitErr
}

func (m *Modal[T]) SuccessMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.success
}

// Submit validates every field, then calls Update (edit mode) or Create.
// On success the caller is refreshed, the modal closes and the form resets.
// On failure the message lands in SubmitError and the values stay intact.
func (m *Modal[T]) Submit(ctx context.Context) (Submission[T], error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return Submission[T]{}, ErrBusy
	}

	if errs := m.form.Validate(); len(errs) > 0 {
		m.mu.Unlock()
		return Submission[T]{Fields: errs}, nil
	}

	m.busy = true
	m.submitErr = ""
	m.clearSuccessLocked()
	mode, id := m.mode, m.editID
	values := m.form.Values()
	m.mu.Unlock()

	res := m.call(ctx, mode, id, values)

	m.mu.Lock()
	m.busy = false

	if !res.Success() {
		m.submitErr = GenericSubmitError
		if err := res.Err(); err != nil && err.Error() != "" {
			m.submitErr = err.Error()
		}
		m.mu.Unlock()
		return Submission[T]{Called: true, Result: res}, nil
	}

	if m.cfg.SuccessMessage != "" {
		m.success = m.cfg.SuccessMessage
		m.timer = time.AfterFunc(m.cfg.SuccessTTL, m.clearSuccess)
	}
	m.open = false
	m.form.Reset()
	m.editID = ""
	m.mu.Unlock()

	// Refresh may read the modal.
	if m.cfg.Refresh != nil {
		m.cfg.Refresh()
	}
	return Submission[T]{Called: true, Result: res}, nil
}

// call builds the payload and runs the remote operation. Build errors and
// panics become failures with the generic message.
func (m *Modal[T]) call(ctx context.Context, mode Mode, id string, values map[string]string) (res result.Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			m.cfg.Logger.Error().Str("panic", fmt.Sprintf("%v", rec)).Msg("form submit panicked")
			res = result.Fail[T](errors.New(GenericSubmitError))
		}
	}()

	payload, err := m.cfg.Build(values)
	if err != nil {
		m.cfg.Logger.Error().Err(err).Msg("form submit: build payload")
		return result.Fail[T](errors.New(GenericSubmitError))
	}
	if m.cfg.Prepare != nil {
		m.cfg.Prepare(mode, &payload)
	}

	if mode == ModeEdit {
		if m.cfg.Update == nil {
			return result.Fail[T](errors.New("editing is not supported"))
		}
		return m.cfg.Update(ctx, id, payload)
	}
	if m.cfg.Create == nil {
		return result.Fail[T](errors.New("creating is not supported"))
	}
	return m.cfg.Create(ctx, payload)
}

func (m *Modal[T]) clearSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = ""
	m.timer = nil
}

func (m *Modal[T]) clearSuccessLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.success = ""
}
