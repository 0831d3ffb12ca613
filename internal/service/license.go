package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/Skotchmaster/game_store/internal/db"
	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/metrics"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
)

const (
	keyAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keySegments      = 3
	keySegmentLen    = 4
	maxKeysPerCall   = 1000
	maxKeyCollisions = 5
)

// NewLicenseKey returns a random key like "7K2Q-XW9A-P0LM".
func NewLicenseKey() (string, error) {
	var b strings.Builder
	b.Grow(keySegments*keySegmentLen + keySegments - 1)
	max := big.NewInt(int64(len(keyAlphabet)))

	for s := 0; s < keySegments; s++ {
		if s > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < keySegmentLen; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("license key: %w", err)
			}
			b.WriteByte(keyAlphabet[n.Int64()])
		}
	}
	return b.String(), nil
}

type LicenseService struct {
	Repo    *repo.GormRepo
	Metrics *metrics.Metrics
	newKey  func() (string, error)
}

func NewLicenseService(r *repo.GormRepo, m *metrics.Metrics) *LicenseService {
	return &LicenseService{Repo: r, Metrics: m, newKey: NewLicenseKey}
}

// GenerateKeys adds count fresh keys to the game's pool in one transaction.
func (s *LicenseService) GenerateKeys(ctx context.Context, gameID uint, count int) ([]models.LicenseKey, error) {
	const op = "license.generate"
	l := logging.FromContext(ctx).With(slog.String("op", op), slog.Uint64("game_id", uint64(gameID)))

	if count < 1 || count > maxKeysPerCall {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrValidation, maxKeysPerCall)
	}
	if _, err := s.Repo.GetGame(ctx, gameID); err != nil {
		return nil, storageErr(err, "game")
	}

	keys := make([]models.LicenseKey, 0, count)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		for i := 0; i < count; i++ {
			key, err := s.createUniqueKey(ctx, tx, gameID)
			if err != nil {
				return err
			}
			keys = append(keys, *key)
		}
		return nil
	})
	if err != nil {
		l.Error("generate keys failed", logging.Err(err))
		return nil, storageErr(err, "license key")
	}

	s.Metrics.KeysGenerated(len(keys))
	l.Info("keys generated", slog.Int("count", len(keys)))
	return keys, nil
}

// createUniqueKey retries on the rare unique collision. A savepoint keeps the
// failed insert from poisoning the surrounding postgres transaction.
func (s *LicenseService) createUniqueKey(ctx context.Context, tx *repo.GormRepo, gameID uint) (*models.LicenseKey, error) {
	var lastErr error
	for attempt := 0; attempt < maxKeyCollisions; attempt++ {
		value, err := s.newKey()
		if err != nil {
			return nil, err
		}
		key := &models.LicenseKey{Key: value, GameID: gameID}

		err = tx.Transaction(ctx, func(sp *repo.GormRepo) error {
			return sp.CreateKey(ctx, key)
		})
		if err == nil {
			return key, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("license key: too many collisions: %w", lastErr)
}

func (s *LicenseService) CountUnused(ctx context.Context, gameID uint) (int64, error) {
	if _, err := s.Repo.GetGame(ctx, gameID); err != nil {
		return 0, storageErr(err, "game")
	}
	n, err := s.Repo.CountUnused(ctx, gameID)
	if err != nil {
		return 0, storageErr(err, "license key")
	}
	return n, nil
}
