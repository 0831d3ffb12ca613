package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/game_store/internal/models"
)

// FindOneUnused returns the oldest unused key for gameID, skipping the ids in
// exclude. On postgres the row is locked FOR UPDATE SKIP LOCKED so parallel
// payers pick different keys instead of waiting on each other.
func (r *GormRepo) FindOneUnused(ctx context.Context, gameID uint, exclude []uint) (*models.LicenseKey, error) {
	q := r.DB.WithContext(ctx).Where("game_id = ? AND used = ?", gameID, false)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	if r.isPostgres() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var key models.LicenseKey
	if err := q.Order("id ASC").Take(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoUnusedKey
		}
		return nil, err
	}
	return &key, nil
}

// MarkUsed flips used=false to true and binds the key to the order item.
// It never touches a key that is already used.
func (r *GormRepo) MarkUsed(ctx context.Context, keyID, orderItemID uint) error {
	res := r.DB.WithContext(ctx).Model(&models.LicenseKey{}).
		Where("id = ? AND used = ?", keyID, false).
		Updates(map[string]any{"used": true, "order_item_id": orderItemID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrKeyTaken
	}
	return nil
}

func (r *GormRepo) CreateKey(ctx context.Context, key *models.LicenseKey) error {
	return r.DB.WithContext(ctx).Create(key).Error
}

func (r *GormRepo) CountUnused(ctx context.Context, gameID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.LicenseKey{}).
		Where("game_id = ? AND used = ?", gameID, false).
		Count(&n).Error
	return n, err
}

func (r *GormRepo) KeysForOrderItems(ctx context.Context, itemIDs []uint) ([]models.LicenseKey, error) {
	var keys []models.LicenseKey
	if len(itemIDs) == 0 {
		return keys, nil
	}
	err := r.DB.WithContext(ctx).Where("order_item_id IN ?", itemIDs).Order("id ASC").Find(&keys).Error
	return keys, err
}
