package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/util"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Name     string `json:"name"     validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
	IsAdmin      bool      `json:"is_admin"`
}

type UpdateMeRequest struct {
	Name     *string `json:"name"     validate:"omitempty,min=1,max=100"`
	Nickname *string `json:"nickname" validate:"omitempty,max=100"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

// Money fields are checked by the catalog service; validator tags do not
// understand decimals.
type CreateGameRequest struct {
	Title         string           `json:"title"          validate:"required,max=255"`
	Slug          string           `json:"slug"           validate:"omitempty,max=255"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price"`
	ReleaseDate   *time.Time       `json:"release_date"`
	Genres        []string         `json:"genres"         validate:"omitempty,dive,required,max=64"`
	Platforms     []string         `json:"platforms"      validate:"omitempty,dive,required,max=64"`
	Developers    []string         `json:"developers"     validate:"omitempty,dive,required,max=128"`
	Publishers    []string         `json:"publishers"     validate:"omitempty,dive,required,max=128"`
	AgeRating     string           `json:"age_rating"     validate:"omitempty,max=16"`
	CoverImage    string           `json:"cover_image"    validate:"omitempty,max=512"`
}

type PatchGameRequest struct {
	Title          *string          `json:"title"           validate:"omitempty,min=1,max=255"`
	Slug           *string          `json:"slug"            validate:"omitempty,min=1,max=255"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	DiscountPrice  *decimal.Decimal `json:"discount_price"`
	RemoveDiscount bool             `json:"remove_discount"`
	ReleaseDate    *time.Time       `json:"release_date"`
	Genres         []string         `json:"genres"          validate:"omitempty,dive,required,max=64"`
	Platforms      []string         `json:"platforms"       validate:"omitempty,dive,required,max=64"`
	Developers     []string         `json:"developers"      validate:"omitempty,dive,required,max=128"`
	Publishers     []string         `json:"publishers"      validate:"omitempty,dive,required,max=128"`
	AgeRating      *string          `json:"age_rating"      validate:"omitempty,max=16"`
	CoverImage     *string          `json:"cover_image"     validate:"omitempty,max=512"`
}

type GameDetail struct {
	models.Game
	Stock int64 `json:"stock"`
}

type GamesPage struct {
	Data []models.Game `json:"data"`
	Meta util.Meta     `json:"meta"`
}

type UsersPage struct {
	Data []models.User `json:"data"`
	Meta util.Meta     `json:"meta"`
}

type GenerateKeysRequest struct {
	Count int `json:"count" validate:"required,min=1,max=1000"`
}

type GenerateKeysResponse struct {
	GameID uint     `json:"game_id"`
	Keys   []string `json:"keys"`
	Stock  int64    `json:"stock"`
}

// CreateOrderRequest carries no validator tags: an empty cart and unknown ids
// have their own error codes.
type CreateOrderRequest struct {
	GameIDs []uint `json:"game_ids"`
}

type PayOrderRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=card paypal wallet"`
	CardNumber    string `json:"card_number"    validate:"omitempty,min=12,max=23"`
}

type PaymentResponse struct {
	Transaction *models.Transaction `json:"transaction"`
	Order       *models.Order       `json:"order"`
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating"  validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type ReviewsPage struct {
	Data          []models.Review `json:"data"`
	AverageRating float64         `json:"average_rating"`
	Meta          util.Meta       `json:"meta"`
}

type WishlistToggleResponse struct {
	GameID uint `json:"game_id"`
	Added  bool `json:"added"`
}
