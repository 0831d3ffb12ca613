package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/db"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidReference = errors.New("unknown game reference")
	ErrAlreadyProcessed = errors.New("order already processed")
	ErrStockExhausted   = errors.New("no license keys left")
	ErrGateway          = errors.New("payment gateway error")
	ErrPersistence      = errors.New("persistence failure")
)

// StockExhaustedError names the game that ran out of keys.
type StockExhaustedError struct {
	GameID uint
	Title  string
}

func (e *StockExhaustedError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("%s: game %d (%s)", ErrStockExhausted, e.GameID, e.Title)
	}
	return fmt.Sprintf("%s: game %d", ErrStockExhausted, e.GameID)
}

func (e *StockExhaustedError) Unwrap() error { return ErrStockExhausted }

// storageErr turns a repository error into one of the service sentinels.
func storageErr(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s is still referenced", ErrConflict, what)
	default:
		return fmt.Errorf("%w: %s: %w", ErrPersistence, what, err)
	}
}
