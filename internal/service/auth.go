package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/hash"
	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/mykafka"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/tokens"
)

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *tokens.Issuer
	Events mykafka.Publisher
}

func NewAuthService(r *repo.GormRepo, iss *tokens.Issuer, ev mykafka.Publisher) *AuthService {
	if ev == nil {
		ev = mykafka.Nop{}
	}
	return &AuthService{Repo: r, Tokens: iss, Events: ev}
}

type LoginResult struct {
	User *models.User
	*tokens.Pair
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	const op = "auth.register"
	l := logging.FromContext(ctx).With(slog.String("op", op))

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("hash password failed", logging.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		Email:        normalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: pwHash,
		Role:         models.RoleUser,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		l.Warn("create user failed", logging.Err(err))
		return nil, storageErr(err, "user")
	}

	if err := s.Events.PublishEvent(ctx, mykafka.TopicUserEvents, strconv.FormatUint(uint64(user.ID), 10), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
	}); err != nil {
		l.Warn("publish event failed", logging.Err(err))
	}
	l.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "auth.login"
	l := logging.FromContext(ctx).With(slog.String("op", op))

	user, err := s.Repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
		}
		return nil, storageErr(err, "user")
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("wrong password", slog.Uint64("user_id", uint64(user.ID)))
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
	}

	pair, err := s.issue(ctx, s.Repo, user)
	if err != nil {
		return nil, err
	}
	l.Info("login successful", slog.Uint64("user_id", uint64(user.ID)))
	return &LoginResult{User: user, Pair: pair}, nil
}

// Refresh rotates the refresh token: the presented one is revoked and a new
// pair is issued. Reusing a rotated token fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	const op = "auth.refresh"
	l := logging.FromContext(ctx).With(slog.String("op", op))

	claims, err := s.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	stored, err := s.Repo.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown refresh token", ErrUnauthenticated)
		}
		return nil, storageErr(err, "refresh token")
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) || stored.TokenHash != hash.Sha256Hex(refreshToken) {
		l.Warn("refresh rejected", slog.Uint64("user_id", uint64(stored.UserID)), slog.Bool("revoked", stored.Revoked))
		return nil, fmt.Errorf("%w: refresh token expired or revoked", ErrUnauthenticated)
	}

	user, err := s.Repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user gone", ErrUnauthenticated)
		}
		return nil, storageErr(err, "user")
	}

	var pair *tokens.Pair
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		ok, err := tx.RevokeRefreshToken(ctx, claims.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: refresh token already used", ErrUnauthenticated)
		}
		pair, err = s.issue(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrPersistence) {
			return nil, err
		}
		return nil, storageErr(err, "refresh token")
	}
	return &LoginResult{User: user, Pair: pair}, nil
}

// Logout revokes the refresh token. Unknown or invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if _, err := s.Repo.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return storageErr(err, "refresh token")
	}
	return nil
}

// EnsureAdmin creates the admin account if no user has that email yet, and
// promotes an existing one otherwise.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err == nil {
		if user.Role == models.RoleAdmin {
			return nil
		}
		user.Role = models.RoleAdmin
		if err := s.Repo.SaveUser(ctx, user); err != nil {
			return storageErr(err, "user")
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return storageErr(err, "user")
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return fmt.Errorf("auth.ensure_admin: %w", err)
	}
	admin := &models.User{Email: email, Name: "admin", PasswordHash: pwHash, Role: models.RoleAdmin}
	if err := s.Repo.CreateUser(ctx, admin); err != nil {
		return storageErr(err, "user")
	}
	return nil
}

// PurgeExpired drops refresh token rows that can no longer be used.
func (s *AuthService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.Repo.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		return 0, storageErr(err, "refresh token")
	}
	return n, nil
}

func (s *AuthService) issue(ctx context.Context, r *repo.GormRepo, user *models.User) (*tokens.Pair, error) {
	pair, err := s.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: issue tokens: %w", ErrPersistence, err)
	}
	row := &models.RefreshToken{
		UserID:    user.ID,
		JTI:       pair.RefreshJTI,
		TokenHash: hash.Sha256Hex(pair.RefreshToken),
		ExpiresAt: pair.RefreshExp,
	}
	if err := r.CreateRefreshToken(ctx, row); err != nil {
		return nil, storageErr(err, "refresh token")
	}
	return pair, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
