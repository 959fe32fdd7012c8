package gueststay

import (
	"context"
	"time"

	"gueststay/internal/app/dto"
	"gueststay/internal/domain/guests"
)

// CheckOutCommand closes an account. An unsettled balance is reported in the
// result's CheckoutFailure, not as an error, because the failed attempt is
// itself recorded on the stream.
type CheckOutCommand struct {
	GuestID         string `validate:"required,max=128"`
	RoomID          string `validate:"required,max=128"`
	CheckInDate     string `validate:"required,datetime=2006-01-02"`
	ExpectedVersion *int64 `validate:"omitempty,gte=0"`
	IdempotencyKeyV string
}

func (c CheckOutCommand) Key() string { return checkOutKey }

func (c CheckOutCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CheckOutCommand) ResultPrototype() any { return &dto.StayCommandResult{} }

type CheckOutHandler struct {
	Accounts *Accounts
	Clock    func() time.Time
}

func (h *CheckOutHandler) Handle(ctx context.Context, cmd CheckOutCommand) (dto.StayCommandResult, error) {
	s, err := resolveStayDate(cmd.GuestID, cmd.RoomID, cmd.CheckInDate)
	if err != nil {
		return dto.StayCommandResult{}, err
	}
	decide := guests.CheckOutGuest{AccountID: s.accountID, Now: clockOrNow(h.Clock)}
	res, err := h.Accounts.Handle(ctx, s.accountID.String(), decide.Decide, handleOptions(cmd.ExpectedVersion)...)
	if err != nil {
		return dto.StayCommandResult{}, err
	}
	return commandResult(s, res), nil
}
