package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderFailed    OrderStatus = "FAILED"
	OrderCompleted OrderStatus = "COMPLETED"
)

type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

type Game struct {
	ID            uint                        `gorm:"primaryKey;autoIncrement"            json:"id"`
	Title         string                      `gorm:"size:255;not null;uniqueIndex"       json:"title"`
	Slug          string                      `gorm:"size:255;not null;uniqueIndex"       json:"slug"`
	Description   string                      `gorm:"type:text"                           json:"description"`
	Price         decimal.Decimal             `gorm:"type:numeric(12,2);not null"         json:"price"`
	DiscountPrice *decimal.Decimal            `gorm:"type:numeric(12,2)"                  json:"discount_price,omitempty"`
	ReleaseDate   *time.Time                  `                                           json:"release_date,omitempty"`
	Genres        datatypes.JSONSlice[string] `                                           json:"genres"`
	Platforms     datatypes.JSONSlice[string] `                                           json:"platforms"`
	Developers    datatypes.JSONSlice[string] `                                           json:"developers"`
	Publishers    datatypes.JSONSlice[string] `                                           json:"publishers"`
	AgeRating     string                      `gorm:"size:16"                             json:"age_rating,omitempty"`
	CoverImage    string                      `gorm:"size:512"                            json:"cover_image,omitempty"`
	CreatedAt     time.Time                   `                                           json:"created_at"`
	UpdatedAt     time.Time                   `                                           json:"updated_at"`
}

// UnitPrice is what one copy costs right now: the discount when set, the list price otherwise.
func (g *Game) UnitPrice() decimal.Decimal {
	if g.DiscountPrice != nil {
		return *g.DiscountPrice
	}
	return g.Price
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"       json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex"  json:"email"`
	Name         string    `gorm:"size:255;not null"              json:"name"`
	Nickname     *string   `gorm:"size:255"                       json:"nickname,omitempty"`
	PasswordHash string    `gorm:"not null"                       json:"-"`
	Role         string    `gorm:"size:16;not null;default:user"  json:"role"`
	CreatedAt    time.Time `                                      json:"created_at"`
	UpdatedAt    time.Time `                                      json:"updated_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"not null;index"`
	JTI       string    `gorm:"size:64;not null;uniqueIndex"`
	TokenHash string    `gorm:"size:64;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Revoked   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}

type Order struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"         json:"id"`
	UserID       uint            `gorm:"not null;index"                   json:"user_id"`
	User         *User           `gorm:"constraint:OnDelete:RESTRICT"     json:"-"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null"      json:"total"`
	Status       OrderStatus     `gorm:"size:16;not null;index"           json:"status"`
	Items        []OrderItem     `gorm:"constraint:OnDelete:CASCADE"      json:"items"`
	Transactions []Transaction   `gorm:"constraint:OnDelete:CASCADE"      json:"transactions,omitempty"`
	CreatedAt    time.Time       `                                        json:"created_at"`
	UpdatedAt    time.Time       `                                        json:"updated_at"`
}

type OrderItem struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"      json:"id"`
	OrderID         uint            `gorm:"not null;index"                json:"order_id"`
	GameID          uint            `gorm:"not null;index"                json:"game_id"`
	Game            *Game           `gorm:"constraint:OnDelete:RESTRICT"  json:"game,omitempty"`
	Quantity        int             `gorm:"not null;default:1"            json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"price_at_purchase"`
	LicenseKey      *LicenseKey     `                                     json:"license_key,omitempty"`
}

type LicenseKey struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"            json:"id"`
	Key         string    `gorm:"size:32;not null;uniqueIndex"        json:"key"`
	GameID      uint      `gorm:"not null;index:idx_license_game_used" json:"game_id"`
	Game        *Game     `gorm:"constraint:OnDelete:CASCADE"         json:"-"`
	Used        bool      `gorm:"not null;default:false;index:idx_license_game_used" json:"used"`
	OrderItemID *uint     `gorm:"uniqueIndex"                         json:"order_item_id,omitempty"`
	CreatedAt   time.Time `                                           json:"created_at"`
}

type Transaction struct {
	ID            uint              `gorm:"primaryKey;autoIncrement"     json:"id"`
	OrderID       uint              `gorm:"not null;index"               json:"order_id"`
	Amount        decimal.Decimal   `gorm:"type:numeric(12,2);not null"  json:"amount"`
	Status        TransactionStatus `gorm:"size:16;not null"             json:"status"`
	PaymentMethod string            `gorm:"size:32;not null"             json:"payment_method"`
	GatewayRef    string            `gorm:"size:64"                      json:"gateway_ref"`
	CreatedAt     time.Time         `                                    json:"created_at"`
}

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                  json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_wishlist_user_game" json:"user_id"`
	GameID    uint      `gorm:"not null;uniqueIndex:idx_wishlist_user_game" json:"game_id"`
	Game      *Game     `gorm:"constraint:OnDelete:CASCADE"               json:"game,omitempty"`
	CreatedAt time.Time `                                                 json:"created_at"`
}

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"     json:"id"`
	GameID    uint      `gorm:"not null;index"               json:"game_id"`
	Game      *Game     `gorm:"constraint:OnDelete:CASCADE"  json:"-"`
	UserID    uint      `gorm:"not null;index"               json:"user_id"`
	Rating    int       `gorm:"not null"                     json:"rating"`
	Comment   string    `gorm:"type:text"                    json:"comment"`
	CreatedAt time.Time `                                    json:"created_at"`
}

// All lists every table in migration order.
func All() []any {
	return []any{
		&User{},
		&RefreshToken{},
		&Game{},
		&Order{},
		&OrderItem{},
		&LicenseKey{},
		&Transaction{},
		&WishlistItem{},
		&Review{},
	}
}
