package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/internal/util"
)

type CatalogHTTP struct {
	Svc      *service.CatalogService
	Search   *service.SearchService
	Licenses *service.LicenseService
}

func pageParams(c echo.Context) (int, int) {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	return page, size
}

func (h *CatalogHTTP) ListGames(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "game.list_games")

	page, size := pageParams(c)
	res, err := h.Svc.ListGames(ctx, page, size)
	if err != nil {
		return fail(l, "list_games_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHTTP) GetGame(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "game.get_game")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_game_error", "id is not a positive integer", err)
	}

	game, err := h.Svc.GetGame(ctx, id)
	if err != nil {
		return fail(l, "get_game_error", err)
	}
	return c.JSON(http.StatusOK, game)
}

func (h *CatalogHTTP) GetGameBySlug(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "game.get_game_by_slug")

	game, err := h.Svc.GetGameBySlug(ctx, c.Param("slug"))
	if err != nil {
		return fail(l, "get_game_error", err)
	}
	return c.JSON(http.StatusOK, game)
}

func (h *CatalogHTTP) SearchGames(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "game.search")

	page, size := pageParams(c)
	res, err := h.Search.SearchGames(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return fail(l, "search_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CatalogHTTP) CreateGame(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_game")

	var req transport.CreateGameRequest
	if err := bind(c, &req); err != nil {
		return badRequest(l, "create_game_error", "invalid body", err)
	}

	game, err := h.Svc.CreateGame(ctx, req)
	if err != nil {
		return fail(l, "create_game_error", err)
	}

	l.Info("create_game_success", "game_id", game.ID)
	return c.JSON(http.StatusCreated, game)
}

func (h *CatalogHTTP) PatchGame(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.patch_game")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "patch_game_error", "id is not a positive integer", err)
	}

	var req transport.PatchGameRequest
	if err := bind(c, &req); err != nil {
		return badRequest(l, "patch_game_error", "invalid body", err)
	}

	game, err := h.Svc.PatchGame(ctx, id, req)
	if err != nil {
		return fail(l, "patch_game_error", err)
	}

	l.Info("patch_game_success", "game_id", game.ID)
	return c.JSON(http.StatusOK, game)
}

func (h *CatalogHTTP) DeleteGame(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_game")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "delete_game_error", "id is not a positive integer", err)
	}

	if err := h.Svc.DeleteGame(ctx, id); err != nil {
		return fail(l, "delete_game_error", err)
	}

	l.Info("delete_game_success", "game_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHTTP) GenerateKeys(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.generate_keys")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "generate_keys_error", "id is not a positive integer", err)
	}

	var req transport.GenerateKeysRequest
	if err := bind(c, &req); err != nil {
		return badRequest(l, "generate_keys_error", "count must be between 1 and 1000", err)
	}

	keys, err := h.Licenses.GenerateKeys(ctx, id, req.Count)
	if err != nil {
		return fail(l, "generate_keys_error", err)
	}
	stock, err := h.Licenses.CountUnused(ctx, id)
	if err != nil {
		return fail(l, "generate_keys_error", err)
	}

	resp := transport.GenerateKeysResponse{GameID: id, Keys: make([]string, 0, len(keys)), Stock: stock}
	for _, k := range keys {
		resp.Keys = append(resp.Keys, k.Key)
	}

	l.Info("generate_keys_success", "game_id", id, "count", len(keys))
	return c.JSON(http.StatusCreated, resp)
}

func (h *CatalogHTTP) KeyStock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.key_stock")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "key_stock_error", "id is not a positive integer", err)
	}

	stock, err := h.Licenses.CountUnused(ctx, id)
	if err != nil {
		return fail(l, "key_stock_error", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"game_id": id, "stock": stock})
}
