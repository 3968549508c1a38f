package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) Me(ctx context.Context, p Principal) (*dto.UserResponse, error) {
	return s.Get(ctx, p, p.UserID)
}

func (s *UserService) Get(ctx context.Context, p Principal, id uuid.UUID) (*dto.UserResponse, error) {
	if err := p.RequireSelfOrAdmin(id); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// Update applies a profile patch. Only admins may change the admin flag.
func (s *UserService) Update(ctx context.Context, p Principal, id uuid.UUID, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if err := p.RequireSelfOrAdmin(id); err != nil {
		return nil, err
	}
	if req.IsAdmin != nil {
		if err := p.RequireAdmin(); err != nil {
			return nil, err
		}
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Address != nil {
		user.Address = *req.Address
	}
	if req.Phone != nil && *req.Phone != user.Phone {
		other, err := s.userRepo.GetByPhone(ctx, *req.Phone)
		if err != nil {
			return nil, fmt.Errorf("check phone: %w", err)
		}
		if other != nil {
			return nil, ErrUserAlreadyExists
		}
		user.Phone = *req.Phone
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *UserService) List(ctx context.Context, p Principal) ([]dto.UserResponse, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return resp, nil
}

func (s *UserService) Delete(ctx context.Context, p Principal, id uuid.UUID) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
