// Package users is the user directory: accounts, roles and the e-mail
// preferences the notification dispatcher consults.
package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"easybid/internal/apperr"
	"easybid/internal/ids"
	"easybid/internal/store"
	"easybid/models"

	"go.uber.org/zap"
)

type Service struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{store: st, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bcrypt rejects passwords longer than 72 bytes.
const maxPasswordBytes = 72

type RegisterInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (in *RegisterInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if utf8.RuneCountInString(in.Name) < 2 {
		return apperr.Validation("name must be at least 2 characters")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return apperr.Validation("valid email is required")
	}
	if len(in.Password) < 6 {
		return apperr.Validation("password must be at least 6 characters")
	}
	if len(in.Password) > maxPasswordBytes {
		return apperr.Validation("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

// Register creates a Buyer or Supplier account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Role != models.RoleBuyer && in.Role != models.RoleSupplier {
		return nil, apperr.Validation("role must be Buyer or Supplier")
	}
	u, err := s.create(ctx, s.store, in)
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// BootstrapAdmin creates the first Admin account. It refuses once one exists.
func (s *Service) BootstrapAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.Role = models.RoleAdmin

	var u *models.User
	err := s.store.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		admins, err := q.ListUsersByRole(ctx, models.RoleAdmin)
		if err != nil {
			return err
		}
		if len(admins) > 0 {
			return apperr.Forbidden("an admin account already exists")
		}
		u, err = s.create(ctx, q, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn("admin account bootstrapped", zap.String("user_id", u.ID))
	return u, nil
}

func (s *Service) create(ctx context.Context, q store.Queries, in RegisterInput) (*models.User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:               ids.New(),
		Name:             in.Name,
		Email:            in.Email,
		PasswordHash:     hash,
		Role:             in.Role,
		EmailPreferences: models.DefaultEmailPreferences(),
		CreatedAt:        s.now().UTC(),
	}
	if err := q.CreateUser(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("user with email %s already exists", in.Email)
		}
		return nil, err
	}
	return u, nil
}

// Authenticate resolves a user by credentials. Unknown e-mail and wrong
// password fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("incorrect email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, apperr.Unauthorized("incorrect email or password")
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	if !role.Valid() {
		return nil, apperr.Validation("unknown role %q", role)
	}
	return s.store.ListUsersByRole(ctx, role)
}

func (s *Service) UpdateEmailPreferences(ctx context.Context, userID string, prefs models.EmailPreferences) (*models.User, error) {
	if err := s.store.UpdateEmailPreferences(ctx, userID, prefs); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, userID)
}

// RequireRole loads the acting user and checks its role.
func RequireRole(ctx context.Context, q store.Queries, userID string, role models.Role) (*models.User, error) {
	u, err := q.GetUser(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Forbidden("unknown user")
	}
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, apperr.Forbidden("only a %s can do this", role)
	}
	return u, nil
}
