package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
)

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{service.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{service.ErrInvalidReference, http.StatusBadRequest, "invalid_reference"},
	{service.ErrValidation, http.StatusBadRequest, "validation"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrAlreadyProcessed, http.StatusConflict, "already_processed"},
	{service.ErrStockExhausted, http.StatusConflict, "stock_exhausted"},
	{service.ErrConflict, http.StatusConflict, "conflict"},
	{service.ErrGateway, http.StatusBadGateway, "payment_gateway"},
	{service.ErrPersistence, http.StatusInternalServerError, "persistence"},
}

func classify(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// fail logs err under event and converts it into an HTTP error. Server-side
// failures get a generic message.
func fail(l *slog.Logger, event string, err error) error {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", code, "error", err)
		msg = http.StatusText(status)
	} else {
		l.Warn(event, "status", status, "reason", code, "error", err)
	}
	return echo.NewHTTPError(status, transport.ErrorBody{Message: msg, Code: code}).SetInternal(err)
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, transport.ErrorBody{Message: reason, Code: "validation"})
}

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	v *validator.Validate
}

func NewValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *RequestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// bind decodes and validates the body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("id must be positive")
	}
	return uint(id), nil
}
