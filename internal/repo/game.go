package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
)

// FindGamesByIDs resolves the given ids. Unknown ids are simply absent from the result.
func (r *GormRepo) FindGamesByIDs(ctx context.Context, ids []uint) ([]models.Game, error) {
	var games []models.Game
	if len(ids) == 0 {
		return games, nil
	}
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *GormRepo) GetGame(ctx context.Context, id uint) (*models.Game, error) {
	var game models.Game
	if err := r.DB.WithContext(ctx).First(&game, id).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *GormRepo) GetGameBySlug(ctx context.Context, slug string) (*models.Game, error) {
	var game models.Game
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *GormRepo) ListGames(ctx context.Context, offset, limit int) (int64, []models.Game, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Game{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Game, 0, limit)
	if err := r.DB.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) CreateGame(ctx context.Context, game *models.Game) error {
	return r.DB.WithContext(ctx).Create(game).Error
}

func (r *GormRepo) SaveGame(ctx context.Context, game *models.Game) error {
	return r.DB.WithContext(ctx).Save(game).Error
}

func (r *GormRepo) DeleteGame(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Game{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) GameHasOrderItems(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.OrderItem{}).Where("game_id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// SearchGamesLike is the database fallback used when no search index is configured.
func (r *GormRepo) SearchGamesLike(ctx context.Context, q string, offset, limit int) (int64, []models.Game, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	where := r.DB.WithContext(ctx).Model(&models.Game{}).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)

	var total int64
	if err := where.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Game, 0, limit)
	if err := r.DB.WithContext(ctx).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Order("title ASC").Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
