package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ehr/portal/internal/platform/result"
	"github.com/ehr/portal/internal/platform/validation"
)

// Service signs users in and manages their passwords.
type Service struct {
	users  UserRepository
	tokens *TokenIssuer
	logger zerolog.Logger
	cost   int
}

func NewService(users UserRepository, tokens *TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger.With().Str("service", "auth").Logger(),
		cost:   bcrypt.DefaultCost,
	}
}

// SetHashCost overrides the bcrypt cost; tests lower it.
func (s *Service) SetHashCost(cost int) { s.cost = cost }

// SignIn checks an email and password and issues a session token. Unknown
// emails and wrong passwords fail with the same error.
func (s *Service) SignIn(ctx context.Context, email, password string) result.Result[Token] {
	return result.Capture(s.logger, "sign_in", func() (Token, error) {
		if msg := validation.Email(email); msg != "" || password == "" {
			return Token{}, ErrInvalidCredentials
		}
		u, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return Token{}, ErrInvalidCredentials
			}
			return Token{}, err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return Token{}, ErrInvalidCredentials
		}

		signed, exp, err := s.tokens.Issue(u)
		if err != nil {
			return Token{}, err
		}
		return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp, User: u}, nil
	})
}

// Register creates credentials for id. Staff and patient records reuse their
// entity id as the user id.
func (s *Service) Register(ctx context.Context, id uuid.UUID, email, password, role string) result.Result[*User] {
	return result.Capture(s.logger, "register", func() (*User, error) {
		errs := validation.Errors{}
		if msg := validation.Email(email); msg != "" {
			errs["email"] = msg
		}
		if msg := validation.Password(password); msg != "" {
			errs["password"] = msg
		}
		if !ValidRole(role) {
			errs["role"] = "Role must be one of: admin, doctor, nurse, patient"
		}
		if len(errs) > 0 {
			return nil, errs
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u := &User{ID: id, Email: normalizeEmail(email), PasswordHash: string(hash), Role: role}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
		return u, nil
	})
}

// UpdatePassword changes the signed-in user's password after checking the
// new value and its confirmation.
func (s *Service) UpdatePassword(ctx context.Context, session Session, password, confirm string) result.Result[Session] {
	return result.Capture(s.logger, "update_password", func() (Session, error) {
		if session.UserID == "" {
			return Session{}, ErrNoSession
		}
		errs := validation.Errors{}
		if msg := validation.Password(password); msg != "" {
			errs["password"] = msg
		}
		if msg := validation.ConfirmPassword(password, confirm); msg != "" {
			errs["confirm_password"] = msg
		}
		if len(errs) > 0 {
			return Session{}, errs
		}

		id, err := uuid.Parse(session.UserID)
		if err != nil {
			return Session{}, ErrInvalidToken
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return Session{}, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.UpdatePassword(ctx, id, string(hash)); err != nil {
			return Session{}, err
		}
		return session, nil
	})
}

// Authenticate resolves a bearer token to its session.
func (s *Service) Authenticate(token string) (Session, error) {
	return s.tokens.Parse(token)
}
