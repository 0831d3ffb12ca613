package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/middleware/auth"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
)

type SocialHTTP struct {
	Wishlist *service.WishlistService
	Reviews  *service.ReviewService
}

func (h *SocialHTTP) ToggleWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.toggle")

	gameID, err := pathID(c, "gameId")
	if err != nil {
		return badRequest(l, "toggle_wishlist_error", "id is not a positive integer", err)
	}

	added, err := h.Wishlist.Toggle(ctx, auth.UserID(c), gameID)
	if err != nil {
		return fail(l, "toggle_wishlist_error", err)
	}
	return c.JSON(http.StatusOK, transport.WishlistToggleResponse{GameID: gameID, Added: added})
}

func (h *SocialHTTP) ListWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.list")

	items, err := h.Wishlist.List(ctx, auth.UserID(c))
	if err != nil {
		return fail(l, "list_wishlist_error", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *SocialHTTP) CreateReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.create")

	gameID, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "create_review_error", "id is not a positive integer", err)
	}

	var req transport.CreateReviewRequest
	if err := bind(c, &req); err != nil {
		return badRequest(l, "create_review_error", "rating must be between 1 and 5", err)
	}

	rv, err := h.Reviews.Create(ctx, auth.UserID(c), gameID, req.Rating, req.Comment)
	if err != nil {
		return fail(l, "create_review_error", err)
	}

	l.Info("create_review_success", "review_id", rv.ID)
	return c.JSON(http.StatusCreated, rv)
}

func (h *SocialHTTP) ListReviews(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.list")

	gameID, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "list_reviews_error", "id is not a positive integer", err)
	}

	page, size := pageParams(c)
	res, err := h.Reviews.List(ctx, gameID, page, size)
	if err != nil {
		return fail(l, "list_reviews_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *SocialHTTP) DeleteReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.delete")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "delete_review_error", "id is not a positive integer", err)
	}

	if err := h.Reviews.Delete(ctx, auth.UserID(c), auth.Role(c), id); err != nil {
		return fail(l, "delete_review_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
