package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	tokenrepo "storefront/internal/repository/token"
)

// memoryRepo is a lightweight in-memory customer repository for tests.
type memoryRepo struct {
	byEmail map[string]domain.Customer
}

type memoryTokenRepo struct {
	tokens map[string]tokenrepo.Token
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: make(map[string]domain.Customer)}
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string]tokenrepo.Token)}
}

func (r *memoryTokenRepo) Create(_ context.Context, token tokenrepo.Token) error {
	if _, exists := r.tokens[token.Token]; exists {
		return domain.ErrAlreadyExists
	}
	r.tokens[token.Token] = token
	return nil
}

func (r *memoryTokenRepo) Get(_ context.Context, token string) (tokenrepo.Token, error) {
	t, ok := r.tokens[token]
	if !ok {
		return tokenrepo.Token{}, domain.ErrNotFound
	}
	return t, nil
}

func (r *memoryTokenRepo) Delete(_ context.Context, token string) error {
	if _, ok := r.tokens[token]; !ok {
		return domain.ErrNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *memoryTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, t := range r.tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) Create(_ context.Context, c domain.Customer) (domain.Customer, error) {
	if _, exists := r.byEmail[c.Email]; exists {
		return domain.Customer{}, domain.ErrAlreadyExists
	}
	if c.ID == "" {
		c.ID = "cust-" + c.Email
	}
	r.byEmail[c.Email] = c
	return c, nil
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (domain.Customer, error) {
	if c, ok := r.byEmail[email]; ok {
		return c, nil
	}
	return domain.Customer{}, domain.ErrNotFound
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (domain.Customer, error) {
	for _, c := range r.byEmail {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Customer{}, domain.ErrNotFound
}

func (r *memoryRepo) SetRole(_ context.Context, id string, role domain.Role) error {
	for email, c := range r.byEmail {
		if c.ID == id {
			c.Role = role
			r.byEmail[email] = c
			return nil
		}
	}
	return domain.ErrNotFound
}

func newTestService() (*Service, *memoryRepo, *memoryTokenRepo) {
	repo := newMemoryRepo()
	tokens := newMemoryTokenRepo()
	return New(repo, tokens, zerolog.Nop()), repo, tokens
}

func TestSignupAndLogin_SucceedsWithTrimmedPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	customer, err := svc.Signup(ctx, SignupInput{
		Email:     " User@Example.com ",
		Password:  " Abcdefg1 ",
		FirstName: "T",
		LastName:  "User",
		Phone:     "9999999999",
	})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", customer.Email)
	assert.Equal(t, domain.RoleCustomer, customer.Role)
	assert.NotEqual(t, "Abcdefg1", customer.PasswordHash)

	got, token, err := svc.Login(ctx, "user@example.com", "Abcdefg1")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)
	assert.NotEmpty(t, token)
}

func TestSignup_ReportsEveryInvalidField(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Signup(context.Background(), SignupInput{Email: "not-an-email", Password: "short"})
	verr, ok := domain.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, []string{"email", "firstName", "password"}, verr.FieldNames())
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	in := SignupInput{Email: "dup@example.com", Password: "Abcdefg1", FirstName: "D"}

	_, err := svc.Signup(ctx, in)
	require.NoError(t, err)
	_, err = svc.Signup(ctx, in)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestValidatePassword_FailsOnWeakValues(t *testing.T) {
	cases := []struct {
		name string
		pass string
	}{
		{"too short", "Abc1"},
		{"no upper", "abcdefg1"},
		{"no lower", "ABCDEFG1"},
		{"no digit", "Abcdefgh"},
	}
	for _, tc := range cases {
		if err := validatePassword(tc.pass, 8); err == nil {
			t.Fatalf("expected error for case %s", tc.name)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "user@example.com", Password: "Abcdefg1", FirstName: "T"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "user@example.com", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "missing@example.com", "Abcdefg1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLookupByToken(t *testing.T) {
	svc, _, tokens := newTestService()
	ctx := context.Background()

	created, err := svc.Signup(ctx, SignupInput{Email: "user@example.com", Password: "Abcdefg1", FirstName: "T"})
	require.NoError(t, err)
	_, token, err := svc.Login(ctx, "user@example.com", "Abcdefg1")
	require.NoError(t, err)

	got, err := svc.LookupByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.LookupByToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)

	stored := tokens.tokens[token]
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	tokens.tokens[token] = stored
	_, err = svc.LookupByToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NotContains(t, tokens.tokens, token, "expired token should be removed")
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "user@example.com", Password: "Abcdefg1", FirstName: "T"})
	require.NoError(t, err)
	_, token, err := svc.Login(ctx, "user@example.com", "Abcdefg1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.LookupByToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NoError(t, svc.Logout(ctx, token))
}

func TestEnsureAdmin_CreatesThenPromotes(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, SignupInput{Email: "admin@example.com", Password: "Admin123", FirstName: "Ada"})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	again, err := svc.EnsureAdmin(ctx, SignupInput{Email: "admin@example.com", Password: "Admin123", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	_, err = svc.Signup(ctx, SignupInput{Email: "ops@example.com", Password: "Abcdefg1", FirstName: "O"})
	require.NoError(t, err)
	promoted, err := svc.EnsureAdmin(ctx, SignupInput{Email: "ops@example.com"})
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())
	assert.Equal(t, domain.RoleAdmin, repo.byEmail["ops@example.com"].Role)
}

func TestPurgeExpired(t *testing.T) {
	svc, _, tokens := newTestService()
	ctx := context.Background()
	tokens.tokens["old"] = tokenrepo.Token{Token: "old", CustomerID: "c", Kind: kindAccess, ExpiresAt: time.Now().Add(-time.Hour)}
	tokens.tokens["new"] = tokenrepo.Token{Token: "new", CustomerID: "c", Kind: kindAccess, ExpiresAt: time.Now().Add(time.Hour)}

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Contains(t, tokens.tokens, "new")
}

type collidingTokenRepo struct {
	*memoryTokenRepo
	failures int
}

func (r *collidingTokenRepo) Create(ctx context.Context, token tokenrepo.Token) error {
	if r.failures > 0 {
		r.failures--
		return domain.ErrAlreadyExists
	}
	return r.memoryTokenRepo.Create(ctx, token)
}

func TestTokenManager_RetriesOnCollision(t *testing.T) {
	repo := &collidingTokenRepo{memoryTokenRepo: newMemoryTokenRepo(), failures: 2}
	m := newTokenManager(repo)

	token, err := m.Issue(context.Background(), "cust-1", kindAccess, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, repo.tokens, token)

	repo.failures = 10
	_, err = m.Issue(context.Background(), "cust-1", kindAccess, time.Hour)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrAlreadyExists))
}
