package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/db/dbtest"
	"github.com/Skotchmaster/game_store/internal/hash"
	"github.com/Skotchmaster/game_store/internal/metrics"
	"github.com/Skotchmaster/game_store/internal/middleware/auth"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/mykafka"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/tokens"
	"github.com/Skotchmaster/game_store/internal/transport"
)

type testEnv struct {
	E       *echo.Echo
	DB      *gorm.DB
	Tokens  *tokens.Issuer
	Metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb := dbtest.New(t)
	r := repo.New(gdb)
	iss := tokens.NewIssuer([]byte("http-test-secret"), time.Minute, time.Hour)
	m := metrics.New()
	ev := mykafka.Nop{}

	catalog := service.NewCatalogService(r, nil, ev)
	e := echo.New()
	e.Validator = NewValidator()
	e.Use(m.Middleware())
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{
			Svc:   service.NewAuthService(r, iss, ev),
			Users: &service.UserService{Repo: r},
		},
		CatalogHandler: &CatalogHTTP{
			Svc:      catalog,
			Search:   &service.SearchService{Repo: r},
			Licenses: service.NewLicenseService(r, m),
		},
		OrderHandler: &OrderHTTP{
			Svc: service.NewOrderService(r, service.SimulatedGateway{DeclinePrefix: "4000"}, ev, m),
		},
		SocialHandler: &SocialHTTP{
			Wishlist: &service.WishlistService{Repo: r},
			Reviews:  &service.ReviewService{Repo: r},
		},
		AuthMW:  auth.New(iss),
		DB:      gdb,
		Metrics: m,
	})

	return &testEnv{E: e, DB: gdb, Tokens: iss, Metrics: m}
}

// login creates a user with the given role and returns its access token.
func (env *testEnv) login(t *testing.T, email, role string) (uint, string) {
	t.Helper()
	pw, err := hash.HashPassword("password123")
	require.NoError(t, err)
	u := &models.User{Email: email, Name: email, PasswordHash: pw, Role: role}
	require.NoError(t, env.DB.Create(u).Error)

	pair, err := env.Tokens.Issue(u.ID, role)
	require.NoError(t, err)
	return u.ID, pair.AccessToken
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[transport.ErrorBody](t, rec)
	require.Equal(t, code, body.Code)
}
