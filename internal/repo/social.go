package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
)

func (r *GormRepo) FindWishlistItem(ctx context.Context, userID, gameID uint) (*models.WishlistItem, error) {
	var w models.WishlistItem
	if err := r.DB.WithContext(ctx).Where("user_id = ? AND game_id = ?", userID, gameID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *GormRepo) CreateWishlistItem(ctx context.Context, w *models.WishlistItem) error {
	return r.DB.WithContext(ctx).Create(w).Error
}

func (r *GormRepo) DeleteWishlistItem(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&models.WishlistItem{}, id).Error
}

func (r *GormRepo) ListWishlist(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	items := make([]models.WishlistItem, 0)
	err := r.DB.WithContext(ctx).Preload("Game").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error
	return items, err
}

func (r *GormRepo) CreateReview(ctx context.Context, rv *models.Review) error {
	return r.DB.WithContext(ctx).Create(rv).Error
}

func (r *GormRepo) GetReview(ctx context.Context, id uint) (*models.Review, error) {
	var rv models.Review
	if err := r.DB.WithContext(ctx).First(&rv, id).Error; err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *GormRepo) DeleteReview(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Review{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListReviews returns one page of reviews for the game plus the total count
// and the average rating across all of them.
func (r *GormRepo) ListReviews(ctx context.Context, gameID uint, offset, limit int) (int64, float64, []models.Review, error) {
	var agg struct {
		Total int64
		Avg   *float64
	}
	if err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS total, AVG(rating) AS avg").
		Where("game_id = ?", gameID).
		Scan(&agg).Error; err != nil {
		return 0, 0, nil, err
	}

	items := make([]models.Review, 0, limit)
	if err := r.DB.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, 0, nil, err
	}

	var avg float64
	if agg.Avg != nil {
		avg = *agg.Avg
	}
	return agg.Total, avg, items, nil
}
