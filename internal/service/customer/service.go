package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	custrepo "storefront/internal/repository/customer"
	tokenrepo "storefront/internal/repository/token"
	"storefront/internal/validation"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

// Service handles customer signup/login flows.
type Service struct {
	repo        custrepo.Repository
	tokens      *tokenManager
	logger      zerolog.Logger
	accessTTL   time.Duration
	passwordMin int
}

type Option func(*Service)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithPasswordMinLength overrides the minimum password length.
func WithPasswordMinLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.passwordMin = n
		}
	}
}

func New(repo custrepo.Repository, tokens tokenrepo.Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		tokens:      newTokenManager(tokens),
		logger:      logger,
		accessTTL:   48 * time.Hour,
		passwordMin: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupInput captures fields expected by the signup endpoint.
type SignupInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Signup registers a new customer.
func (s *Service) Signup(ctx context.Context, in SignupInput) (domain.Customer, error) {
	return s.register(ctx, in, domain.RoleCustomer)
}

// EnsureAdmin creates an admin account or promotes the existing customer
// with the same email.
func (s *Service) EnsureAdmin(ctx context.Context, in SignupInput) (domain.Customer, error) {
	existing, err := s.repo.GetByEmail(ctx, normalizeEmail(in.Email))
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return existing, nil
		}
		if err := s.repo.SetRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
			return domain.Customer{}, err
		}
		existing.Role = domain.RoleAdmin
		s.logger.Info().Str("customer_id", existing.ID).Msg("customer promoted to admin")
		return existing, nil
	case errors.Is(err, domain.ErrNotFound):
		return s.register(ctx, in, domain.RoleAdmin)
	default:
		return domain.Customer{}, err
	}
}

func (s *Service) register(ctx context.Context, in SignupInput, role domain.Role) (domain.Customer, error) {
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	in.FirstName = strings.TrimSpace(in.FirstName)

	verr := &domain.ValidationError{}
	if err := validation.Struct(in); err != nil {
		if ve, ok := domain.AsValidation(err); ok {
			verr.Fields = append(verr.Fields, ve.Fields...)
		} else {
			return domain.Customer{}, err
		}
	}
	if in.Password != "" {
		if err := validatePassword(in.Password, s.passwordMin); err != nil {
			verr.Add("password", err.Error())
		}
	}
	if verr.HasErrors() {
		return domain.Customer{}, verr
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Customer{}, err
	}
	created, err := s.repo.Create(ctx, domain.Customer{
		Email:        in.Email,
		PasswordHash: string(hashed),
		FirstName:    in.FirstName,
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.logger.Info().Str("customer_id", created.ID).Str("role", string(created.Role)).Msg("customer registered")
	return created, nil
}

// Login validates credentials and returns the customer plus an access token.
func (s *Service) Login(ctx context.Context, email, password string) (domain.Customer, string, error) {
	password = strings.TrimSpace(password)
	c, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Customer{}, "", ErrInvalidCredentials
		}
		return domain.Customer{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return domain.Customer{}, "", ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(ctx, c.ID, kindAccess, s.accessTTL)
	if err != nil {
		return domain.Customer{}, "", err
	}
	return c, access, nil
}

// Logout revokes an access token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.tokens.Revoke(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// LookupByToken returns the customer bound to a valid access token.
func (s *Service) LookupByToken(ctx context.Context, token string) (domain.Customer, error) {
	meta, ok := s.tokens.Validate(ctx, token)
	if !ok {
		return domain.Customer{}, ErrInvalidToken
	}
	c, err := s.repo.GetByID(ctx, meta.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Customer{}, ErrInvalidToken
		}
		return domain.Customer{}, err
	}
	return c, nil
}

// PurgeExpired deletes every token past its expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.repo.DeleteExpired(ctx, s.tokens.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug().Int64("count", n).Msg("expired tokens purged")
	}
	return n, nil
}

// AccessTTLSeconds exposes the access token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return fmt.Errorf("must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
