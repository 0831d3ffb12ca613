package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/mykafka"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugRun  = regexp.MustCompile(`[^a-z0-9]+`)
)

// GameIndex is the search index the catalog keeps in sync.
type GameIndex interface {
	IndexGame(ctx context.Context, g *models.Game) error
	DeleteGame(ctx context.Context, id uint) error
	SearchGames(ctx context.Context, query string, from, size int) (int64, []uint, error)
}

type CatalogService struct {
	Repo   *repo.GormRepo
	Index  GameIndex
	Events mykafka.Publisher
}

func NewCatalogService(r *repo.GormRepo, idx GameIndex, ev mykafka.Publisher) *CatalogService {
	if ev == nil {
		ev = mykafka.Nop{}
	}
	return &CatalogService{Repo: r, Index: idx, Events: ev}
}

// Slugify lowercases the title and joins its alphanumeric runs with dashes.
func Slugify(title string) string {
	return strings.Trim(nonSlugRun.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

func (s *CatalogService) ListGames(ctx context.Context, page, size int) (*transport.GamesPage, error) {
	offset, limit := util.Calculate(page, size)
	total, items, err := s.Repo.ListGames(ctx, offset, limit)
	if err != nil {
		return nil, storageErr(err, "games")
	}
	return &transport.GamesPage{Data: items, Meta: util.NewMeta(page, offset, limit, total)}, nil
}

func (s *CatalogService) GetGame(ctx context.Context, id uint) (*transport.GameDetail, error) {
	g, err := s.Repo.GetGame(ctx, id)
	if err != nil {
		return nil, storageErr(err, "game")
	}
	return s.detail(ctx, g)
}

func (s *CatalogService) GetGameBySlug(ctx context.Context, slug string) (*transport.GameDetail, error) {
	g, err := s.Repo.GetGameBySlug(ctx, slug)
	if err != nil {
		return nil, storageErr(err, "game")
	}
	return s.detail(ctx, g)
}

func (s *CatalogService) detail(ctx context.Context, g *models.Game) (*transport.GameDetail, error) {
	stock, err := s.Repo.CountUnused(ctx, g.ID)
	if err != nil {
		return nil, storageErr(err, "license key")
	}
	return &transport.GameDetail{Game: *g, Stock: stock}, nil
}

func (s *CatalogService) CreateGame(ctx context.Context, req transport.CreateGameRequest) (*models.Game, error) {
	const op = "catalog.create_game"
	l := logging.FromContext(ctx).With(slog.String("op", op))

	g := &models.Game{
		Title:         strings.TrimSpace(req.Title),
		Slug:          req.Slug,
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		ReleaseDate:   req.ReleaseDate,
		Genres:        req.Genres,
		Platforms:     req.Platforms,
		Developers:    req.Developers,
		Publishers:    req.Publishers,
		AgeRating:     req.AgeRating,
		CoverImage:    req.CoverImage,
	}
	if g.Slug == "" {
		g.Slug = Slugify(g.Title)
	}
	if err := validateGame(g); err != nil {
		return nil, err
	}

	if err := s.Repo.CreateGame(ctx, g); err != nil {
		l.Warn("create game failed", logging.Err(err))
		return nil, storageErr(err, "game")
	}

	s.afterWrite(ctx, l, "game_created", g)
	l.Info("game created", slog.Uint64("game_id", uint64(g.ID)))
	return g, nil
}

func (s *CatalogService) PatchGame(ctx context.Context, id uint, req transport.PatchGameRequest) (*models.Game, error) {
	const op = "catalog.patch_game"
	l := logging.FromContext(ctx).With(slog.String("op", op), slog.Uint64("game_id", uint64(id)))

	g, err := s.Repo.GetGame(ctx, id)
	if err != nil {
		return nil, storageErr(err, "game")
	}

	if req.Title != nil {
		g.Title = strings.TrimSpace(*req.Title)
	}
	if req.Slug != nil {
		g.Slug = *req.Slug
	}
	if req.Description != nil {
		g.Description = *req.Description
	}
	if req.Price != nil {
		g.Price = *req.Price
	}
	if req.RemoveDiscount {
		g.DiscountPrice = nil
	} else if req.DiscountPrice != nil {
		g.DiscountPrice = req.DiscountPrice
	}
	if req.ReleaseDate != nil {
		g.ReleaseDate = req.ReleaseDate
	}
	if req.Genres != nil {
		g.Genres = req.Genres
	}
	if req.Platforms != nil {
		g.Platforms = req.Platforms
	}
	if req.Developers != nil {
		g.Developers = req.Developers
	}
	if req.Publishers != nil {
		g.Publishers = req.Publishers
	}
	if req.AgeRating != nil {
		g.AgeRating = *req.AgeRating
	}
	if req.CoverImage != nil {
		g.CoverImage = *req.CoverImage
	}

	if err := validateGame(g); err != nil {
		return nil, err
	}
	if err := s.Repo.SaveGame(ctx, g); err != nil {
		l.Warn("patch game failed", logging.Err(err))
		return nil, storageErr(err, "game")
	}

	s.afterWrite(ctx, l, "game_updated", g)
	l.Info("game updated")
	return g, nil
}

// DeleteGame refuses to remove games that appear in any order.
func (s *CatalogService) DeleteGame(ctx context.Context, id uint) error {
	const op = "catalog.delete_game"
	l := logging.FromContext(ctx).With(slog.String("op", op), slog.Uint64("game_id", uint64(id)))

	referenced, err := s.Repo.GameHasOrderItems(ctx, id)
	if err != nil {
		return storageErr(err, "game")
	}
	if referenced {
		return fmt.Errorf("%w: game is referenced by orders", ErrConflict)
	}

	if err := s.Repo.DeleteGame(ctx, id); err != nil {
		return storageErr(err, "game")
	}

	if err := s.Events.PublishEvent(ctx, mykafka.TopicCatalogEvents, strconv.FormatUint(uint64(id), 10), map[string]any{
		"type":   "game_deleted",
		"gameID": id,
	}); err != nil {
		l.Warn("publish event failed", logging.Err(err))
	}
	if s.Index != nil {
		if err := s.Index.DeleteGame(ctx, id); err != nil {
			l.Warn("search index delete failed", logging.Err(err))
		}
	}
	l.Info("game deleted")
	return nil
}

func (s *CatalogService) afterWrite(ctx context.Context, l *slog.Logger, eventType string, g *models.Game) {
	event := map[string]any{
		"type":   eventType,
		"gameID": g.ID,
		"title":  g.Title,
		"slug":   g.Slug,
		"price":  g.Price.StringFixed(2),
	}
	if g.DiscountPrice != nil {
		event["discountPrice"] = g.DiscountPrice.StringFixed(2)
	}
	if err := s.Events.PublishEvent(ctx, mykafka.TopicCatalogEvents, strconv.FormatUint(uint64(g.ID), 10), event); err != nil {
		l.Warn("publish event failed", logging.Err(err))
	}
	if s.Index != nil {
		if err := s.Index.IndexGame(ctx, g); err != nil {
			l.Warn("search index update failed", logging.Err(err))
		}
	}
}

func validateGame(g *models.Game) error {
	if g.Title == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	if !slugPattern.MatchString(g.Slug) {
		return fmt.Errorf("%w: slug %q is not url-safe", ErrValidation, g.Slug)
	}
	if g.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if g.DiscountPrice != nil {
		if g.DiscountPrice.IsNegative() {
			return fmt.Errorf("%w: discount cannot be negative", ErrValidation)
		}
		if !g.DiscountPrice.LessThan(g.Price) {
			return fmt.Errorf("%w: discount must be below price", ErrValidation)
		}
	}
	return nil
}
