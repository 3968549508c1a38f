package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

type mockUserRepo struct {
	byPhone map[string]*model.User
	byID    map[uuid.UUID]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byPhone: make(map[string]*model.User), byID: make(map[uuid.UUID]*model.User)}
}

func (m *mockUserRepo) add(u *model.User) *model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.byPhone[u.Phone] = u
	m.byID[u.ID] = u
	return u
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if _, ok := m.byPhone[user.Phone]; ok {
		return repository.ErrDuplicate
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.add(user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return m.byID[id], nil
}

func (m *mockUserRepo) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	return m.byPhone[phone], nil
}

func (m *mockUserRepo) List(_ context.Context) ([]model.User, error) {
	var users []model.User
	for _, u := range m.byID {
		users = append(users, *u)
	}
	return users, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	old, ok := m.byID[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.byPhone, old.Phone)
	m.add(user)
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.byID, id)
	delete(m.byPhone, u.Phone)
	return nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	resp, err := svc.Register(context.Background(), dto.SignupRequest{
		Name: "Ann", Phone: "5551234567", Address: "1 Main St", Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "5551234567", resp.User.Phone)
	assert.False(t, resp.User.IsAdmin)

	stored := repo.byPhone["5551234567"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "password123", stored.Password)
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)
	repo.add(&model.User{Phone: "5551234567"})

	_, err := svc.Register(context.Background(), dto.SignupRequest{
		Name: "Ann", Phone: "5551234567", Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Register_InvalidPhone(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), "test-secret", time.Hour)

	_, err := svc.Register(context.Background(), dto.SignupRequest{
		Name: "Ann", Phone: "12ab", Password: "password123",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Login(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)
	user := repo.add(&model.User{Phone: "5551234567", Password: hashed(t, "password123")})

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Phone: "5551234567", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	p, err := svc.Authenticate(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.False(t, p.Admin)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)
	repo.add(&model.User{Phone: "5551234567", Password: hashed(t, "password123")})

	_, err := svc.Login(context.Background(), dto.LoginRequest{Phone: "5551234567", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Phone: "0000000000", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_AdminLogin(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)
	repo.add(&model.User{Phone: "5550000001", Password: hashed(t, "secret1"), IsAdmin: true})
	repo.add(&model.User{Phone: "5550000002", Password: hashed(t, "secret2")})

	resp, err := svc.AdminLogin(context.Background(), dto.LoginRequest{Phone: "5550000001", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsAdmin)

	_, err = svc.AdminLogin(context.Background(), dto.LoginRequest{Phone: "5550000002", Password: "secret2"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthService_Authenticate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", 30*time.Minute)
	user := repo.add(&model.User{Phone: "5551234567", Password: hashed(t, "pw1234")})

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Phone: "5551234567", Password: "pw1234"})
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService(repo, "other-secret", time.Hour)
		_, err := other.Authenticate(context.Background(), resp.AccessToken)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewAuthService(repo, "test-secret", 30*time.Minute)
		late.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
		_, err := late.Authenticate(context.Background(), resp.AccessToken)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: user.ID.String(),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = svc.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("role change applies immediately", func(t *testing.T) {
		user.IsAdmin = true
		defer func() { user.IsAdmin = false }()
		p, err := svc.Authenticate(context.Background(), resp.AccessToken)
		require.NoError(t, err)
		assert.True(t, p.Admin)
	})

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, repo.Delete(context.Background(), user.ID))
		_, err := svc.Authenticate(context.Background(), resp.AccessToken)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, "test-secret", time.Hour)

	created, err := svc.EnsureAdmin(context.Background(), "Admin", "5559990000", "adminpw")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, repo.byPhone["5559990000"].IsAdmin)

	created, err = svc.EnsureAdmin(context.Background(), "Admin", "5559990000", "adminpw")
	require.NoError(t, err)
	assert.False(t, created)

	repo.add(&model.User{Phone: "5558880000", Password: hashed(t, "pw")})
	promoted, err := svc.EnsureAdmin(context.Background(), "Admin", "5558880000", "ignored")
	require.NoError(t, err)
	assert.True(t, promoted)
	assert.True(t, repo.byPhone["5558880000"].IsAdmin)
}
