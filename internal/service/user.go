package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/game_store/internal/hash"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

type UserService struct {
	Repo *repo.GormRepo
}

func (s *UserService) Me(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "user")
	}
	return u, nil
}

func (s *UserService) UpdateMe(ctx context.Context, userID uint, req transport.UpdateMeRequest) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "user")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be blank", ErrValidation)
		}
		u.Name = name
	}
	if req.Nickname != nil {
		if nick := strings.TrimSpace(*req.Nickname); nick == "" {
			u.Nickname = nil
		} else {
			u.Nickname = &nick
		}
	}
	if req.Password != nil {
		pwHash, err := hash.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("user.update: %w", err)
		}
		u.PasswordHash = pwHash
	}

	if err := s.Repo.SaveUser(ctx, u); err != nil {
		return nil, storageErr(err, "user")
	}
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context, page, size int) (*transport.UsersPage, error) {
	offset, limit := util.Calculate(page, size)
	total, users, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, storageErr(err, "users")
	}
	return &transport.UsersPage{Data: users, Meta: util.NewMeta(page, offset, limit, total)}, nil
}
