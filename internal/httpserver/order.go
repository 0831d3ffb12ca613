package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/middleware/auth"
	"github.com/Skotchmaster/game_store/internal/service"
	"github.com/Skotchmaster/game_store/internal/transport"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.CreateOrder(ctx, auth.UserID(c), req.GameIDs)
	if err != nil {
		return fail(l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID, "items", len(order.Items))
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	orders, err := h.Svc.GetUserOrders(ctx, auth.UserID(c))
	if err != nil {
		return fail(l, "get_orders_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_order_error", "id is not a positive integer", err)
	}

	order, err := h.Svc.GetOrder(ctx, auth.UserID(c), id)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

// PayOrder answers 200 on approval and 402 on decline; both carry the
// recorded transaction and the updated order.
func (h *OrderHTTP) PayOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.pay_order")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "pay_order_error", "id is not a positive integer", err)
	}

	var req transport.PayOrderRequest
	if err := bind(c, &req); err != nil {
		return badRequest(l, "pay_order_error", "invalid payment details", err)
	}

	res, err := h.Svc.ProcessPayment(ctx, service.PaymentInput{
		UserID:     auth.UserID(c),
		OrderID:    id,
		Method:     req.PaymentMethod,
		CardNumber: req.CardNumber,
	})
	if err != nil {
		return fail(l, "pay_order_error", err)
	}

	resp := transport.PaymentResponse{Transaction: res.Transaction, Order: res.Order}
	if !res.Approved() {
		l.Warn("pay_order_declined", "status", http.StatusPaymentRequired, "order_id", id)
		return c.JSON(http.StatusPaymentRequired, resp)
	}

	l.Info("pay_order_success", "order_id", id)
	return c.JSON(http.StatusOK, resp)
}
