package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

const tokenType = "bearer"

type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
	now       func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{userRepo: userRepo, jwtSecret: []byte(jwtSecret), jwtExpiry: jwtExpiry, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, req dto.SignupRequest) (*dto.AuthResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	user, err := s.createUser(ctx, req.Name, req.Phone, req.Address, req.Password, false)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.verify(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// AdminLogin is Login restricted to administrators.
func (s *AuthService) AdminLogin(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.verify(ctx, req)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, ErrForbidden
	}
	return s.issue(user)
}

// Authenticate validates a bearer token and reloads its user, so role changes
// and deletions take effect before the token expires.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Principal{}, ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return Principal{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{UserID: user.ID, Admin: user.IsAdmin}, nil
}

// EnsureAdmin creates an administrator with the given phone unless one exists.
// An existing non-admin account with that phone is promoted.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, phone, password string) (bool, error) {
	existing, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	if existing != nil {
		if existing.IsAdmin {
			return false, nil
		}
		existing.IsAdmin = true
		if err := s.userRepo.Update(ctx, existing); err != nil {
			return false, fmt.Errorf("promote admin: %w", err)
		}
		return true, nil
	}
	if _, err := s.createUser(ctx, name, phone, "", password, true); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) verify(ctx context.Context, req dto.LoginRequest) (*model.User, error) {
	user, err := s.userRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, name, phone, address, password string, admin bool) (*model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		Name: name, Phone: phone, Address: address,
		Password: string(hashed), IsAdmin: admin,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*dto.AuthResponse, error) {
	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{AccessToken: token, TokenType: tokenType, User: toUserResponse(user)}, nil
}

func (s *AuthService) generateToken(user *model.User) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID: user.ID, Name: user.Name, Phone: user.Phone,
		Address: user.Address, IsAdmin: user.IsAdmin,
	}
}
