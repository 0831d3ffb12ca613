package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/game_store/internal/db"
	"github.com/Skotchmaster/game_store/internal/db/dbtest"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/mykafka"
	"github.com/Skotchmaster/game_store/internal/repo"
)

func TestCreateOrderUsesDiscountWhenPresent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "a@example.com")
	a := env.game(t, "Game A", 100, nil)
	b := env.game(t, "Game B", 200, i64(150))

	order, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID, b.ID})
	require.NoError(t, err)

	require.Equal(t, models.OrderPending, order.Status)
	require.True(t, decimal.NewFromInt(250).Equal(order.Total), "total %s", order.Total)
	require.Len(t, order.Items, 2)
	require.True(t, decimal.NewFromInt(100).Equal(order.Items[0].PriceAtPurchase))
	require.True(t, decimal.NewFromInt(150).Equal(order.Items[1].PriceAtPurchase))
	require.Equal(t, 1, order.Items[0].Quantity)
	require.Equal(t, "Game A", order.Items[0].Game.Title)

	stored, err := env.Repo.GetOrderDetailed(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(250).Equal(stored.Total))
	require.Equal(t, []string{"order_created"}, env.Events.types(mykafka.TopicOrderEvents))
}

func TestCreateOrderTotalIsSumOfUnitPrices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "sum@example.com")

	tests := []struct {
		name     string
		price    int64
		discount *int64
	}{
		{"full price", 60, nil},
		{"discounted", 40, i64(10)},
		{"free", 0, nil},
		{"deep discount", 70, i64(1)},
	}

	ids := make([]uint, 0, len(tests))
	want := decimal.Zero
	for _, tt := range tests {
		g := env.game(t, tt.name, tt.price, tt.discount)
		ids = append(ids, g.ID)
		want = want.Add(g.UnitPrice())
	}

	order, err := env.Orders.CreateOrder(ctx, u.ID, ids)
	require.NoError(t, err)
	require.True(t, want.Equal(order.Total), "want %s got %s", want, order.Total)
	require.True(t, decimal.NewFromInt(60+10+0+1).Equal(order.Total))
}

func TestCreateOrderPricesAreSnapshotted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "snap@example.com")
	g := env.game(t, "Snapshot", 30, nil)

	order, err := env.Orders.CreateOrder(ctx, u.ID, []uint{g.ID})
	require.NoError(t, err)

	require.NoError(t, env.DB.Model(&models.Game{}).Where("id = ?", g.ID).Update("price", decimal.NewFromInt(99)).Error)

	stored, err := env.Repo.GetOrderDetailed(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(30).Equal(stored.Total))
	require.True(t, decimal.NewFromInt(30).Equal(stored.Items[0].PriceAtPurchase))
}

func TestCreateOrderInvalidReferenceWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "b@example.com")
	a := env.game(t, "Game A", 100, nil)

	for _, ids := range [][]uint{{a.ID, 9999}, {0}, {a.ID, 0}} {
		_, err := env.Orders.CreateOrder(context.Background(), u.ID, ids)
		require.ErrorIs(t, err, ErrInvalidReference, "ids %v", ids)
	}

	require.Zero(t, env.count(t, &models.Order{}))
	require.Zero(t, env.count(t, &models.OrderItem{}))
	require.Empty(t, env.Events.types(mykafka.TopicOrderEvents))
}

func TestCreateOrderEmptyCartNeverTouchesStorage(t *testing.T) {
	gdb := dbtest.New(t)
	require.NoError(t, db.Close(gdb))

	svc := NewOrderService(repo.New(gdb), SimulatedGateway{}, nil, nil)
	for _, ids := range [][]uint{nil, {}} {
		_, err := svc.CreateOrder(context.Background(), 1, ids)
		require.ErrorIs(t, err, ErrEmptyCart)
	}

	// the closed database does fail once storage is reached
	_, err := svc.CreateOrder(context.Background(), 1, []uint{1})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestCreateOrderRequiresCaller(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Orders.CreateOrder(context.Background(), 0, []uint{1})
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProcessPaymentClaimsOneKeyPerItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "pay@example.com")
	a := env.game(t, "Game A", 100, nil)
	b := env.game(t, "Game B", 200, i64(150))
	env.keys(t, a.ID, "AAAA-AAAA-AAA1", "AAAA-AAAA-AAA2")
	env.keys(t, b.ID, "BBBB-BBBB-BBB1")

	order, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID, b.ID})
	require.NoError(t, err)

	res, err := env.Orders.ProcessPayment(ctx, PaymentInput{
		UserID: u.ID, OrderID: order.ID, Method: "card", CardNumber: "4242 4242 4242 4242",
	})
	require.NoError(t, err)
	require.True(t, res.Approved())

	require.Equal(t, models.TransactionSuccess, res.Transaction.Status)
	require.True(t, decimal.NewFromInt(250).Equal(res.Transaction.Amount))
	require.NotEmpty(t, res.Transaction.GatewayRef)
	require.Equal(t, models.OrderPaid, res.Order.Status)
	require.Len(t, res.Order.Transactions, 1)

	require.Len(t, res.Order.Items, 2)
	require.NotNil(t, res.Order.Items[0].LicenseKey)
	require.NotNil(t, res.Order.Items[1].LicenseKey)
	require.Equal(t, "AAAA-AAAA-AAA1", res.Order.Items[0].LicenseKey.Key)
	require.Equal(t, "BBBB-BBBB-BBB1", res.Order.Items[1].LicenseKey.Key)
	for _, it := range res.Order.Items {
		require.True(t, it.LicenseKey.Used)
		require.Equal(t, it.GameID, it.LicenseKey.GameID)
		require.Equal(t, it.ID, *it.LicenseKey.OrderItemID)
	}

	require.EqualValues(t, 1, env.unusedKeys(t, a.ID))
	require.EqualValues(t, 0, env.unusedKeys(t, b.ID))
	require.Equal(t, []string{"order_created", "order_paid"}, env.Events.types(mykafka.TopicOrderEvents))
}

func TestProcessPaymentRejectsProcessedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "again@example.com")
	a := env.game(t, "Game A", 100, nil)
	env.keys(t, a.ID, "KEY1-KEY1-KEY1", "KEY2-KEY2-KEY2")

	paid, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID})
	require.NoError(t, err)
	_, err = env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: paid.ID, Method: "paypal"})
	require.NoError(t, err)

	failed, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID})
	require.NoError(t, err)
	_, err = env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: failed.ID, Method: "card", CardNumber: "4000000000000002"})
	require.NoError(t, err)

	for _, id := range []uint{paid.ID, failed.ID} {
		before, err := env.Repo.CountTransactions(ctx, id)
		require.NoError(t, err)

		_, err = env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: id, Method: "paypal"})
		require.ErrorIs(t, err, ErrAlreadyProcessed)

		after, err := env.Repo.CountTransactions(ctx, id)
		require.NoError(t, err)
		require.Equal(t, before, after)
		require.EqualValues(t, 1, after)
	}
	require.EqualValues(t, 1, env.unusedKeys(t, a.ID))
}

func TestProcessPaymentStockExhaustedRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "c@example.com")
	c := env.game(t, "Game C", 50, nil)
	env.keys(t, c.ID, "CCCC-CCCC-CCC1")

	order, err := env.Orders.CreateOrder(ctx, u.ID, []uint{c.ID, c.ID})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)

	_, err = env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: order.ID, Method: "card", CardNumber: "4242424242424242"})
	require.ErrorIs(t, err, ErrStockExhausted)

	var stock *StockExhaustedError
	require.True(t, errors.As(err, &stock))
	require.Equal(t, c.ID, stock.GameID)
	require.Equal(t, "Game C", stock.Title)

	stored, err := env.Repo.GetOrderDetailed(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderPending, stored.Status)
	require.Empty(t, stored.Transactions)
	require.EqualValues(t, 1, env.unusedKeys(t, c.ID))
	for _, it := range stored.Items {
		require.Nil(t, it.LicenseKey)
	}

	require.Equal(t, []string{"order_created", "payment_unfulfilled"}, env.Events.types(mykafka.TopicOrderEvents))
	unfulfilled := env.Events.events[len(env.Events.events)-1].Event
	require.Equal(t, c.ID, unfulfilled["gameID"])
	require.True(t, strings.HasPrefix(unfulfilled["gatewayRef"].(string), "sim_"))
}

func TestProcessPaymentStockExhaustedKeepsEarlierClaimsUnused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "d@example.com")
	a := env.game(t, "Game A", 10, nil)
	empty := env.game(t, "Sold Out", 20, nil)
	env.keys(t, a.ID, "AAAA-0000-0001")

	order, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID, empty.ID})
	require.NoError(t, err)

	_, err = env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: order.ID, Method: "wallet"})
	require.ErrorIs(t, err, ErrStockExhausted)

	require.EqualValues(t, 1, env.unusedKeys(t, a.ID))
	var bound int64
	require.NoError(t, env.DB.Model(&models.LicenseKey{}).Where("order_item_id IS NOT NULL").Count(&bound).Error)
	require.Zero(t, bound)

	// once stock arrives the same order can be paid
	env.keys(t, empty.ID, "SOLD-0000-0001")
	res, err := env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: order.ID, Method: "wallet"})
	require.NoError(t, err)
	require.Equal(t, models.OrderPaid, res.Order.Status)
}

func TestProcessPaymentDecline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "decline@example.com")
	a := env.game(t, "Game A", 100, nil)
	env.keys(t, a.ID, "DECL-DECL-DEC1")

	order, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID})
	require.NoError(t, err)

	res, err := env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: order.ID, Method: "card", CardNumber: "4000-0000-0000-0002"})
	require.NoError(t, err)
	require.False(t, res.Approved())
	require.Equal(t, models.TransactionFailed, res.Transaction.Status)
	require.Equal(t, models.OrderFailed, res.Order.Status)
	require.Nil(t, res.Order.Items[0].LicenseKey)
	require.EqualValues(t, 1, env.unusedKeys(t, a.ID))
	require.Contains(t, env.Events.types(mykafka.TopicOrderEvents), "order_failed")
}

func TestProcessPaymentConcurrentLastKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := env.game(t, "Last Copy", 15, nil)
	env.keys(t, g.ID, "LAST-LAST-LAST")

	u1 := env.user(t, "p1@example.com")
	u2 := env.user(t, "p2@example.com")
	o1, err := env.Orders.CreateOrder(ctx, u1.ID, []uint{g.ID})
	require.NoError(t, err)
	o2, err := env.Orders.CreateOrder(ctx, u2.ID, []uint{g.ID})
	require.NoError(t, err)

	inputs := []PaymentInput{
		{UserID: u1.ID, OrderID: o1.ID, Method: "paypal"},
		{UserID: u2.ID, OrderID: o2.ID, Method: "paypal"},
	}
	errs := make([]error, len(inputs))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in PaymentInput) {
			defer wg.Done()
			<-start
			_, errs[i] = env.Orders.ProcessPayment(ctx, in)
		}(i, in)
	}
	close(start)
	wg.Wait()

	var ok, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrStockExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exhausted)
	assert.EqualValues(t, 0, env.unusedKeys(t, g.ID))

	var paid int64
	require.NoError(t, env.DB.Model(&models.Order{}).Where("status = ?", models.OrderPaid).Count(&paid).Error)
	assert.EqualValues(t, 1, paid)
}

func TestProcessPaymentOwnershipAndValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com")
	other := env.user(t, "other@example.com")
	a := env.game(t, "Game A", 100, nil)
	order, err := env.Orders.CreateOrder(ctx, owner.ID, []uint{a.ID})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   PaymentInput
		want error
	}{
		{"someone else's order", PaymentInput{UserID: other.ID, OrderID: order.ID, Method: "paypal"}, ErrNotFound},
		{"missing order", PaymentInput{UserID: owner.ID, OrderID: 4242, Method: "paypal"}, ErrNotFound},
		{"no method", PaymentInput{UserID: owner.ID, OrderID: order.ID}, ErrValidation},
		{"card without number", PaymentInput{UserID: owner.ID, OrderID: order.ID, Method: "card"}, ErrValidation},
		{"anonymous", PaymentInput{OrderID: order.ID, Method: "paypal"}, ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Orders.ProcessPayment(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	stored, err := env.Repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderPending, stored.Status)
}

func TestProcessPaymentGatewayError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "gw@example.com")
	a := env.game(t, "Game A", 100, nil)
	env.keys(t, a.ID, "GATE-GATE-GATE")
	order, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID})
	require.NoError(t, err)

	env.Orders.Gateway = failingGateway{}
	_, err = env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: order.ID, Method: "paypal"})
	require.ErrorIs(t, err, ErrGateway)

	n, err := env.Repo.CountTransactions(ctx, order.ID)
	require.NoError(t, err)
	require.Zero(t, n)
	require.EqualValues(t, 1, env.unusedKeys(t, a.ID))
}

func TestGetUserOrdersNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "list@example.com")
	other := env.user(t, "stranger@example.com")
	a := env.game(t, "Game A", 100, nil)
	env.keys(t, a.ID, "LIST-LIST-LIS1")

	first, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID})
	require.NoError(t, err)
	_, err = env.Orders.ProcessPayment(ctx, PaymentInput{UserID: u.ID, OrderID: first.ID, Method: "paypal"})
	require.NoError(t, err)
	second, err := env.Orders.CreateOrder(ctx, u.ID, []uint{a.ID, a.ID})
	require.NoError(t, err)
	_, err = env.Orders.CreateOrder(ctx, other.ID, []uint{a.ID})
	require.NoError(t, err)

	orders, err := env.Orders.GetUserOrders(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, second.ID, orders[0].ID)
	require.Equal(t, first.ID, orders[1].ID)

	require.Len(t, orders[0].Items, 2)
	require.Equal(t, "Game A", orders[0].Items[0].Game.Title)
	require.Len(t, orders[1].Transactions, 1)
	require.NotNil(t, orders[1].Items[0].LicenseKey)
	require.Equal(t, "LIST-LIST-LIS1", orders[1].Items[0].LicenseKey.Key)

	empty, err := env.Orders.GetUserOrders(ctx, 12345)
	require.NoError(t, err)
	require.Empty(t, empty)

	got, err := env.Orders.GetOrder(ctx, u.ID, first.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderPaid, got.Status)
	_, err = env.Orders.GetOrder(ctx, other.ID, first.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
