package gueststay

import (
	"context"
	"time"

	"gueststay/internal/app/dto"
	"gueststay/internal/domain/guests"
	"gueststay/internal/domain/shared/stayday"
)

// CheckInCommand opens today's account for a guest in a room.
type CheckInCommand struct {
	GuestID         string `validate:"required,max=128"`
	RoomID          string `validate:"required,max=128"`
	ExpectedVersion *int64 `validate:"omitempty,gte=0"`
	IdempotencyKeyV string
}

func (c CheckInCommand) Key() string { return checkInKey }

func (c CheckInCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CheckInCommand) ResultPrototype() any { return &dto.StayCommandResult{} }

type CheckInHandler struct {
	Accounts *Accounts
	Clock    func() time.Time
}

func (h *CheckInHandler) Handle(ctx context.Context, cmd CheckInCommand) (dto.StayCommandResult, error) {
	now := clockOrNow(h.Clock)
	s, err := resolveStay(cmd.GuestID, cmd.RoomID, stayday.Of(now))
	if err != nil {
		return dto.StayCommandResult{}, err
	}
	decide := guests.CheckInGuest{
		AccountID: s.accountID,
		GuestID:   s.guestID,
		RoomID:    s.roomID,
		Now:       now,
	}
	res, err := h.Accounts.Handle(ctx, s.accountID.String(), decide.Decide, handleOptions(cmd.ExpectedVersion)...)
	if err != nil {
		return dto.StayCommandResult{}, err
	}
	return commandResult(s, res), nil
}
