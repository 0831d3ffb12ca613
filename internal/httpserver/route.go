package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/db"
	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/metrics"
	"github.com/Skotchmaster/game_store/internal/middleware/auth"
)

type Deps struct {
	AuthHandler    *AuthHTTP
	CatalogHandler *CatalogHTTP
	OrderHandler   *OrderHTTP
	SocialHandler  *SocialHTTP
	AuthMW         *auth.Middleware
	DB             *gorm.DB
	Metrics        *metrics.Metrics
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := db.Ping(ctx, d.DB); err != nil {
			logging.FromContext(ctx).Error("ready_check_failed", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/refresh", d.AuthHandler.Refresh)
	authGroup.POST("/logout", d.AuthHandler.Logout)

	me := api.Group("/me", d.AuthMW.RequireAuth)
	me.GET("", d.AuthHandler.Me)
	me.PATCH("", d.AuthHandler.UpdateMe)

	games := api.Group("/games")
	games.GET("", d.CatalogHandler.ListGames)
	games.GET("/search", d.CatalogHandler.SearchGames)
	games.GET("/slug/:slug", d.CatalogHandler.GetGameBySlug)
	games.GET("/:id", d.CatalogHandler.GetGame)
	games.GET("/:id/reviews", d.SocialHandler.ListReviews)
	games.POST("/:id/reviews", d.SocialHandler.CreateReview, d.AuthMW.RequireAuth)

	api.DELETE("/reviews/:id", d.SocialHandler.DeleteReview, d.AuthMW.RequireAuth)

	wishlist := api.Group("/wishlist", d.AuthMW.RequireAuth)
	wishlist.GET("", d.SocialHandler.ListWishlist)
	wishlist.POST("/:gameId", d.SocialHandler.ToggleWishlist)

	orders := api.Group("/orders", d.AuthMW.RequireAuth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.GetOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/pay", d.OrderHandler.PayOrder)

	admin := api.Group("/admin", d.AuthMW.RequireAdmin)
	admin.POST("/games", d.CatalogHandler.CreateGame)
	admin.PATCH("/games/:id", d.CatalogHandler.PatchGame)
	admin.DELETE("/games/:id", d.CatalogHandler.DeleteGame)
	admin.POST("/games/:id/keys", d.CatalogHandler.GenerateKeys)
	admin.GET("/games/:id/keys/stock", d.CatalogHandler.KeyStock)
	admin.GET("/users", d.AuthHandler.ListUsers)
}
