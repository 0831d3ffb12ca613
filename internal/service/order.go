package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skotchmaster/game_store/internal/logging"
	"github.com/Skotchmaster/game_store/internal/metrics"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/mykafka"
	"github.com/Skotchmaster/game_store/internal/repo"
)

// maxClaimAttempts bounds how many candidate keys one item may lose to other
// payers before the claim gives up.
const maxClaimAttempts = 5

type OrderService struct {
	Repo    *repo.GormRepo
	Gateway PaymentGateway
	Events  mykafka.Publisher
	Metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewOrderService(r *repo.GormRepo, gw PaymentGateway, ev mykafka.Publisher, m *metrics.Metrics) *OrderService {
	if ev == nil {
		ev = mykafka.Nop{}
	}
	return &OrderService{
		Repo:    r,
		Gateway: gw,
		Events:  ev,
		Metrics: m,
		tracer:  otel.Tracer("github.com/Skotchmaster/game_store/internal/service"),
	}
}

type PaymentInput struct {
	UserID     uint
	OrderID    uint
	Method     string
	CardNumber string
}

type PaymentResult struct {
	Transaction *models.Transaction
	Order       *models.Order
}

// Approved reports whether the payment went through.
func (r *PaymentResult) Approved() bool {
	return r.Transaction != nil && r.Transaction.Status == models.TransactionSuccess
}

// CreateOrder turns a cart into a PENDING order. Each id becomes one item
// priced at the game's current unit price; repeated ids give repeated items.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, gameIDs []uint) (*models.Order, error) {
	const op = "order.create"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int("order.items", len(gameIDs)),
	))
	defer span.End()
	l := logging.FromContext(ctx).With(slog.String("op", op), slog.Uint64("user_id", uint64(userID)))

	order, err := s.createOrder(ctx, l, userID, gameIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", int64(order.ID)))
	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, l *slog.Logger, userID uint, gameIDs []uint) (*models.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if len(gameIDs) == 0 {
		return nil, ErrEmptyCart
	}

	distinct := make([]uint, 0, len(gameIDs))
	seen := make(map[uint]struct{}, len(gameIDs))
	for _, id := range gameIDs {
		if id == 0 {
			return nil, fmt.Errorf("%w: game id must be positive", ErrInvalidReference)
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			distinct = append(distinct, id)
		}
	}

	games, err := s.Repo.FindGamesByIDs(ctx, distinct)
	if err != nil {
		l.Error("resolve games failed", logging.Err(err))
		return nil, fmt.Errorf("%w: resolve games: %w", ErrPersistence, err)
	}
	byID := make(map[uint]models.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}
	if len(byID) != len(distinct) {
		missing := make([]uint, 0)
		for _, id := range distinct {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		l.Warn("unknown games in cart", slog.Any("missing", missing))
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, missing)
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(gameIDs))
	for _, id := range gameIDs {
		g := byID[id]
		price := g.UnitPrice()
		total = total.Add(price)
		items = append(items, models.OrderItem{
			GameID:          id,
			Quantity:        1,
			PriceAtPurchase: price,
		})
	}

	order := &models.Order{
		UserID: userID,
		Total:  total,
		Status: models.OrderPending,
		Items:  items,
	}
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		l.Error("create order failed", logging.Err(err))
		return nil, fmt.Errorf("%w: create order: %w", ErrPersistence, err)
	}

	for i := range order.Items {
		g := byID[order.Items[i].GameID]
		order.Items[i].Game = &g
	}

	s.Metrics.OrderCreated(total.InexactFloat64())
	s.publish(ctx, l, orderKey(order.ID), map[string]any{
		"type":    "order_created",
		"orderID": order.ID,
		"userID":  userID,
		"total":   total.StringFixed(2),
		"items":   len(order.Items),
	})
	l.Info("order created", slog.Uint64("order_id", uint64(order.ID)), slog.String("total", total.StringFixed(2)))
	return order, nil
}

// ProcessPayment charges a PENDING order. On approval every item gets one
// license key and the order becomes PAID, all in one transaction; if any game
// is out of keys nothing is claimed and the order stays PENDING. On decline the
// order becomes FAILED. Either decision appends one Transaction row.
func (s *OrderService) ProcessPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	const op = "order.pay"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int64("order.id", int64(in.OrderID)),
		attribute.String("payment.method", in.Method),
	))
	defer span.End()
	l := logging.FromContext(ctx).With(
		slog.String("op", op),
		slog.Uint64("user_id", uint64(in.UserID)),
		slog.Uint64("order_id", uint64(in.OrderID)),
	)

	res, err := s.processPayment(ctx, l, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.Metrics.Payment(paymentOutcome(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.status", string(res.Transaction.Status)))
	return res, nil
}

func (s *OrderService) processPayment(ctx context.Context, l *slog.Logger, in PaymentInput) (*PaymentResult, error) {
	if in.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	if in.Method == "" {
		return nil, fmt.Errorf("%w: payment method required", ErrValidation)
	}
	if in.Method == "card" && in.CardNumber == "" {
		return nil, fmt.Errorf("%w: card number required", ErrValidation)
	}

	order, err := s.Repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, storageErr(err, "order")
	}
	if order.UserID != in.UserID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	if order.Status != models.OrderPending {
		l.Warn("payment on processed order", slog.String("status", string(order.Status)))
		return nil, fmt.Errorf("%w: status %s", ErrAlreadyProcessed, order.Status)
	}

	charge, err := s.Gateway.Charge(ctx, ChargeRequest{
		OrderID:    order.ID,
		Amount:     order.Total,
		Method:     in.Method,
		CardNumber: in.CardNumber,
	})
	if err != nil {
		l.Error("gateway failed", logging.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	txn := &models.Transaction{
		OrderID:       order.ID,
		Amount:        order.Total,
		PaymentMethod: in.Method,
		GatewayRef:    charge.Reference,
	}

	if charge.Approved {
		err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
			if err := tx.TransitionStatus(ctx, order.ID, models.OrderPending, models.OrderPaid); err != nil {
				return err
			}
			items := append([]models.OrderItem(nil), order.Items...)
			sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
			for _, item := range items {
				if err := claimKey(ctx, tx, item); err != nil {
					return err
				}
			}
			txn.Status = models.TransactionSuccess
			return tx.CreateTransaction(ctx, txn)
		})
	} else {
		err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
			if err := tx.TransitionStatus(ctx, order.ID, models.OrderPending, models.OrderFailed); err != nil {
				return err
			}
			txn.Status = models.TransactionFailed
			return tx.CreateTransaction(ctx, txn)
		})
	}
	if err != nil {
		var stock *StockExhaustedError
		switch {
		case errors.As(err, &stock):
			l.Warn("stock exhausted after approved charge",
				slog.Uint64("game_id", uint64(stock.GameID)),
				slog.String("gateway_ref", charge.Reference),
			)
			s.publish(ctx, l, orderKey(order.ID), map[string]any{
				"type":       "payment_unfulfilled",
				"orderID":    order.ID,
				"userID":     order.UserID,
				"gameID":     stock.GameID,
				"total":      order.Total.StringFixed(2),
				"method":     in.Method,
				"gatewayRef": charge.Reference,
			})
			return nil, err
		case errors.Is(err, repo.ErrStatusChanged):
			l.Warn("order changed during payment")
			return nil, fmt.Errorf("%w: concurrent payment", ErrAlreadyProcessed)
		default:
			l.Error("payment transaction failed", logging.Err(err))
			return nil, fmt.Errorf("%w: payment: %w", ErrPersistence, err)
		}
	}

	updated, err := s.Repo.GetOrderDetailed(ctx, order.ID)
	if err != nil {
		return nil, storageErr(err, "order")
	}

	event := map[string]any{
		"orderID":    order.ID,
		"userID":     order.UserID,
		"total":      order.Total.StringFixed(2),
		"method":     in.Method,
		"gatewayRef": charge.Reference,
	}
	if charge.Approved {
		event["type"] = "order_paid"
		s.Metrics.Payment(metrics.PaymentApproved)
		s.Metrics.KeysClaimed(len(order.Items))
		l.Info("order paid", slog.Int("keys", len(order.Items)))
	} else {
		event["type"] = "order_failed"
		s.Metrics.Payment(metrics.PaymentDeclined)
		l.Info("payment declined")
	}
	s.publish(ctx, l, orderKey(order.ID), event)

	return &PaymentResult{Transaction: txn, Order: updated}, nil
}

// claimKey binds one unused key of the item's game to the item. It must run
// inside the payment transaction.
func claimKey(ctx context.Context, tx *repo.GormRepo, item models.OrderItem) error {
	exhausted := &StockExhaustedError{GameID: item.GameID}
	if item.Game != nil {
		exhausted.Title = item.Game.Title
	}

	var lost []uint
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		key, err := tx.FindOneUnused(ctx, item.GameID, lost)
		if errors.Is(err, repo.ErrNoUnusedKey) {
			return exhausted
		}
		if err != nil {
			return err
		}

		err = tx.MarkUsed(ctx, key.ID, item.ID)
		if errors.Is(err, repo.ErrKeyTaken) {
			lost = append(lost, key.ID)
			continue
		}
		return err
	}
	return exhausted
}

// GetUserOrders lists the user's orders newest first with items, games, keys
// and payment attempts.
func (s *OrderService) GetUserOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	orders, err := s.Repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "orders")
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	order, err := s.Repo.GetOrderDetailed(ctx, orderID)
	if err != nil {
		return nil, storageErr(err, "order")
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, l *slog.Logger, key string, event map[string]any) {
	if err := s.Events.PublishEvent(ctx, mykafka.TopicOrderEvents, key, event); err != nil {
		l.Warn("publish event failed", slog.Any("type", event["type"]), logging.Err(err))
	}
}

func paymentOutcome(err error) string {
	switch {
	case errors.Is(err, ErrStockExhausted):
		return metrics.PaymentStockExhausted
	case errors.Is(err, ErrAlreadyProcessed):
		return metrics.PaymentAlreadyProcessed
	default:
		return metrics.PaymentError
	}
}

func orderKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
