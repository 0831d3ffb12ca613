package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

type SearchService struct {
	Repo  *repo.GormRepo
	Index GameIndex
}

// SearchGames asks the search index when one is configured and falls back to
// a LIKE query otherwise. Index hits are reloaded from the database so prices
// are always current.
func (s *SearchService) SearchGames(ctx context.Context, query string, page, size int) (*transport.GamesPage, error) {
	const op = "search.games"
	l := logging.FromContext(ctx).With(slog.String("op", op))

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrValidation)
	}
	offset, limit := util.Calculate(page, size)

	if s.Index == nil {
		total, items, err := s.Repo.SearchGamesLike(ctx, query, offset, limit)
		if err != nil {
			return nil, storageErr(err, "games")
		}
		return &transport.GamesPage{Data: items, Meta: util.NewMeta(page, offset, limit, total)}, nil
	}

	total, ids, err := s.Index.SearchGames(ctx, query, offset, limit)
	if err != nil {
		l.Error("search index failed", logging.Err(err))
		return nil, fmt.Errorf("%w: search: %w", ErrPersistence, err)
	}

	games, err := s.Repo.FindGamesByIDs(ctx, ids)
	if err != nil {
		return nil, storageErr(err, "games")
	}
	byID := make(map[uint]models.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}
	items := make([]models.Game, 0, len(ids))
	for _, id := range ids {
		// the index can briefly hold games that were already deleted
		if g, ok := byID[id]; ok {
			items = append(items, g)
		}
	}
	return &transport.GamesPage{Data: items, Meta: util.NewMeta(page, offset, limit, total)}, nil
}
