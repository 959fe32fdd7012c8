package gueststay

import (
	"context"
	"fmt"
	"time"

	"gueststay/internal/app/dto"
	"gueststay/internal/domain/guests"
	"gueststay/internal/domain/shared/money"
)

type RecordChargeCommand struct {
	GuestID         string      `validate:"required,max=128"`
	RoomID          string      `validate:"required,max=128"`
	CheckInDate     string      `validate:"required,datetime=2006-01-02"`
	Amount          money.Money `validate:"gt=0"`
	ExpectedVersion *int64      `validate:"omitempty,gte=0"`
	IdempotencyKeyV string
}

func (c RecordChargeCommand) Key() string { return recordChargeKey }

func (c RecordChargeCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RecordChargeCommand) ResultPrototype() any { return &dto.StayCommandResult{} }

type RecordChargeHandler struct {
	Accounts *Accounts
	Clock    func() time.Time
	NewID    func() string
}

func (h *RecordChargeHandler) Handle(ctx context.Context, cmd RecordChargeCommand) (dto.StayCommandResult, error) {
	s, err := resolveStayDate(cmd.GuestID, cmd.RoomID, cmd.CheckInDate)
	if err != nil {
		return dto.StayCommandResult{}, err
	}
	amount, err := money.Positive(cmd.Amount)
	if err != nil {
		return dto.StayCommandResult{}, fmt.Errorf("%w: amount: %w", ErrInvalidInput, err)
	}
	decide := guests.RecordCharge{
		AccountID: s.accountID,
		ChargeID:  newIDOr(h.NewID),
		Amount:    amount,
		Now:       clockOrNow(h.Clock),
	}
	res, err := h.Accounts.Handle(ctx, s.accountID.String(), decide.Decide, handleOptions(cmd.ExpectedVersion)...)
	if err != nil {
		return dto.StayCommandResult{}, err
	}
	return commandResult(s, res), nil
}
