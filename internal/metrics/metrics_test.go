package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.OrderCreated(250)
	m.Payment(PaymentApproved)
	m.Payment(PaymentApproved)
	m.Payment(PaymentDeclined)
	m.KeysClaimed(2)
	m.KeysGenerated(10)

	require.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated))
	require.Equal(t, 2.0, testutil.ToFloat64(m.payments.WithLabelValues(PaymentApproved)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues(PaymentDeclined)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.keysClaimed))
	require.Equal(t, 10.0, testutil.ToFloat64(m.keysGenerated))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.OrderCreated(1)
		m.Payment(PaymentError)
		m.KeysClaimed(1)
		m.KeysGenerated(1)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	t.Parallel()

	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/games/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "no") })
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	for _, path := range []string{"/api/games/1", "/api/games/2", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/games/:id", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/boom", "418")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "game_store_http_requests_total"))
}
