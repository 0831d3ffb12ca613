package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrKeyTaken means the key was claimed by someone else between lookup and update.
	ErrKeyTaken = errors.New("license key already used")
	// ErrNoUnusedKey means the game has no key left to hand out.
	ErrNoUnusedKey = errors.New("no unused license key")
	// ErrStatusChanged means the order was no longer in the expected status.
	ErrStatusChanged = errors.New("order status changed")
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// Transaction runs fn with a repo bound to a single database transaction.
// Only the repo passed to fn may be used inside it.
func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

func (r *GormRepo) isPostgres() bool {
	return r.DB.Dialector.Name() == "postgres"
}
