package gueststay

import (
	"context"

	"gueststay/internal/app/dto"
	"gueststay/internal/app/readmodel"
	"gueststay/internal/app/uow"
)

type GetDetailsQuery struct {
	GuestID     string `validate:"required,max=128"`
	RoomID      string `validate:"required,max=128"`
	CheckInDate string `validate:"required,datetime=2006-01-02"`
}

func (q GetDetailsQuery) Key() string { return getDetailsKey }

// GetDetailsHandler serves active stays from the projected documents only;
// the event log is never read on this path.
type GetDetailsHandler struct {
	UoWFactory uow.UoWFactory
	Cache      DetailsCache
}

func (h *GetDetailsHandler) Handle(ctx context.Context, q GetDetailsQuery) (dto.GuestStayDetails, error) {
	s, err := resolveStayDate(q.GuestID, q.RoomID, q.CheckInDate)
	if err != nil {
		return dto.GuestStayDetails{}, err
	}
	doc, err := h.load(ctx, s.accountID.String())
	if err != nil {
		return dto.GuestStayDetails{}, err
	}
	if !doc.IsActive() {
		return dto.GuestStayDetails{}, ErrStayNotFound
	}
	return dto.GuestStayDetailsFromModel(doc), nil
}

func (h *GetDetailsHandler) load(ctx context.Context, id string) (readmodel.GuestStayDetails, error) {
	if h.Cache != nil {
		if doc, ok := h.Cache.Get(ctx, id); ok {
			return doc, nil
		}
	}
	doc, found, err := loadDetails(ctx, h.UoWFactory, id)
	if err != nil {
		return readmodel.GuestStayDetails{}, err
	}
	if !found {
		return readmodel.GuestStayDetails{}, ErrStayNotFound
	}
	if h.Cache != nil {
		h.Cache.Set(ctx, id, doc)
	}
	return doc, nil
}

func loadDetails(ctx context.Context, factory uow.UoWFactory, id string) (readmodel.GuestStayDetails, bool, error) {
	unit, execCtx, release, err := beginReadOnly(ctx, factory)
	if err != nil {
		return readmodel.GuestStayDetails{}, false, err
	}
	defer release()
	return unit.StayDetails().ByID(execCtx, id)
}
