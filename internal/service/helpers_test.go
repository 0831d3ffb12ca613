package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/db/dbtest"
	"github.com/Skotchmaster/game_store/internal/metrics"
	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
)

type publishedEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, _ := event.(map[string]any)
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: m})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0)
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Event["type"].(string))
		}
	}
	return out
}

type failingGateway struct{}

func (failingGateway) Charge(context.Context, ChargeRequest) (ChargeResult, error) {
	return ChargeResult{}, errors.New("gateway timeout")
}

type testEnv struct {
	DB      *gorm.DB
	Repo    *repo.GormRepo
	Events  *recordingPublisher
	Metrics *metrics.Metrics
	Orders  *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := dbtest.New(t)
	r := repo.New(gdb)
	ev := &recordingPublisher{}
	m := metrics.New()
	return &testEnv{
		DB:      gdb,
		Repo:    r,
		Events:  ev,
		Metrics: m,
		Orders:  NewOrderService(r, SimulatedGateway{DeclinePrefix: "4000"}, ev, m),
	}
}

func (e *testEnv) user(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, e.DB.Create(u).Error)
	return u
}

func (e *testEnv) game(t *testing.T, title string, price int64, discount *int64) *models.Game {
	t.Helper()
	g := &models.Game{Title: title, Slug: Slugify(title), Price: decimal.NewFromInt(price)}
	if discount != nil {
		d := decimal.NewFromInt(*discount)
		g.DiscountPrice = &d
	}
	require.NoError(t, e.DB.Create(g).Error)
	return g
}

func (e *testEnv) keys(t *testing.T, gameID uint, values ...string) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, e.DB.Create(&models.LicenseKey{Key: v, GameID: gameID}).Error)
	}
}

func (e *testEnv) unusedKeys(t *testing.T, gameID uint) int64 {
	t.Helper()
	n, err := e.Repo.CountUnused(context.Background(), gameID)
	require.NoError(t, err)
	return n
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Model(model).Count(&n).Error)
	return n
}

func i64(v int64) *int64 { return &v }
