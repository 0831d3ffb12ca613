package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
)

func withOrderDetails(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("Items.Game").
		Preload("Items.LicenseKey").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("transactions.id ASC") })
}

// CreateOrder inserts the order together with its items.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("Items.Game").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrderDetailed(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := withOrderDetails(r.DB.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	err := withOrderDetails(r.DB.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionStatus moves the order from one status to another. It fails with
// ErrStatusChanged when the order is no longer in from.
func (r *GormRepo) TransitionStatus(ctx context.Context, id uint, from, to models.OrderStatus) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *GormRepo) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) CountTransactions(ctx context.Context, orderID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Transaction{}).Where("order_id = ?", orderID).Count(&n).Error
	return n, err
}
