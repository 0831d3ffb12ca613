package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChargeRequest struct {
	OrderID    uint
	Amount     decimal.Decimal
	Method     string
	CardNumber string
}

type ChargeResult struct {
	Approved  bool
	Reference string
}

// PaymentGateway charges the buyer. An error means the gateway could not
// decide; a decline is a successful call with Approved=false.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// SimulatedGateway approves everything except cards starting with DeclinePrefix.
type SimulatedGateway struct {
	DeclinePrefix string
}

func (g SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}

	card := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, req.CardNumber)

	approved := g.DeclinePrefix == "" || !strings.HasPrefix(card, g.DeclinePrefix)
	return ChargeResult{
		Approved:  approved,
		Reference: "sim_" + uuid.NewString(),
	}, nil
}
