package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/db"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

type WishlistService struct {
	Repo *repo.GormRepo
}

// Toggle adds the game to the wishlist, or removes it when already there.
func (s *WishlistService) Toggle(ctx context.Context, userID, gameID uint) (bool, error) {
	if _, err := s.Repo.GetGame(ctx, gameID); err != nil {
		return false, storageErr(err, "game")
	}

	existing, err := s.Repo.FindWishlistItem(ctx, userID, gameID)
	switch {
	case err == nil:
		if err := s.Repo.DeleteWishlistItem(ctx, existing.ID); err != nil {
			return false, storageErr(err, "wishlist item")
		}
		return false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.add(ctx, userID, gameID)
	default:
		return false, storageErr(err, "wishlist item")
	}
}

// add inserts the pair. Losing the insert race to a concurrent add still
// leaves the game on the wishlist.
func (s *WishlistService) add(ctx context.Context, userID, gameID uint) (bool, error) {
	err := s.Repo.CreateWishlistItem(ctx, &models.WishlistItem{UserID: userID, GameID: gameID})
	switch {
	case err == nil, db.IsUniqueViolation(err):
		return true, nil
	default:
		return false, storageErr(err, "wishlist item")
	}
}

func (s *WishlistService) List(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	items, err := s.Repo.ListWishlist(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "wishlist")
	}
	return items, nil
}

// ReviewService does not limit users to one review per game.
type ReviewService struct {
	Repo *repo.GormRepo
}

func (s *ReviewService) Create(ctx context.Context, userID, gameID uint, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if _, err := s.Repo.GetGame(ctx, gameID); err != nil {
		return nil, storageErr(err, "game")
	}

	rv := &models.Review{
		GameID:  gameID,
		UserID:  userID,
		Rating:  rating,
		Comment: strings.TrimSpace(comment),
	}
	if err := s.Repo.CreateReview(ctx, rv); err != nil {
		return nil, storageErr(err, "review")
	}
	return rv, nil
}

func (s *ReviewService) List(ctx context.Context, gameID uint, page, size int) (*transport.ReviewsPage, error) {
	if _, err := s.Repo.GetGame(ctx, gameID); err != nil {
		return nil, storageErr(err, "game")
	}
	offset, limit := util.Calculate(page, size)
	total, avg, items, err := s.Repo.ListReviews(ctx, gameID, offset, limit)
	if err != nil {
		return nil, storageErr(err, "reviews")
	}
	return &transport.ReviewsPage{
		Data:          items,
		AverageRating: avg,
		Meta:          util.NewMeta(page, offset, limit, total),
	}, nil
}

// Delete removes a review. Only its author or an admin may do that.
func (s *ReviewService) Delete(ctx context.Context, callerID uint, role string, reviewID uint) error {
	rv, err := s.Repo.GetReview(ctx, reviewID)
	if err != nil {
		return storageErr(err, "review")
	}
	if rv.UserID != callerID && role != models.RoleAdmin {
		return fmt.Errorf("%w: not your review", ErrForbidden)
	}
	if err := s.Repo.DeleteReview(ctx, reviewID); err != nil {
		return storageErr(err, "review")
	}
	return nil
}
