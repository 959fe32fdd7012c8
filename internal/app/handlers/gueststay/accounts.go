package gueststay

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gueststay/internal/app/dto"
	"gueststay/internal/app/eventsourcing"
	"gueststay/internal/app/projections"
	"gueststay/internal/app/uow"
	"gueststay/internal/domain/guests"
	"gueststay/internal/domain/shared/events"
	"gueststay/internal/domain/shared/stayday"
)

const (
	checkInKey       = "guest_stay.check_in"
	recordChargeKey  = "guest_stay.record_charge"
	recordPaymentKey = "guest_stay.record_payment"
	checkOutKey      = "guest_stay.check_out"
	getDetailsKey    = "guest_stay.get_details"
	exportFolioKey   = "guest_stay.export_folio"
)

var (
	ErrInvalidInput = errors.New("gueststay: invalid input")
	ErrStayNotFound = errors.New("gueststay: stay not found")
)

// Accounts runs commands against guest stay account streams.
type Accounts = eventsourcing.CommandHandler[guests.State, guests.Event]

type AccountsOptions struct {
	UoWFactory  uow.UoWFactory
	Logger      *slog.Logger
	MaxAttempts int
	Clock       func() time.Time
	Hooks       []eventsourcing.CommitHook
}

// NewAccounts wires the guest stay domain into a command handler that keeps
// the details projection in the same unit of work as the append.
func NewAccounts(opts AccountsOptions) *Accounts {
	return &Accounts{
		UoWFactory:  opts.UoWFactory,
		Codec:       guests.Codec{},
		Initial:     guests.Initial,
		Evolve:      guests.Evolve,
		Projections: []eventsourcing.Projection[guests.Event]{projections.GuestStayDetails{}},
		Hooks:       opts.Hooks,
		MaxAttempts: opts.MaxAttempts,
		Logger:      opts.Logger,
		Clock:       opts.Clock,
	}
}

type stay struct {
	accountID guests.AccountID
	guestID   string
	roomID    string
	day       stayday.Day
}

func resolveStay(guestID, roomID string, day stayday.Day) (stay, error) {
	guestID = strings.TrimSpace(guestID)
	roomID = strings.TrimSpace(roomID)
	id, err := guests.NewAccountID(guestID, roomID, day)
	if err != nil {
		return stay{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return stay{accountID: id, guestID: guestID, roomID: roomID, day: day}, nil
}

func resolveStayDate(guestID, roomID, checkInDate string) (stay, error) {
	day, err := stayday.Parse(checkInDate)
	if err != nil {
		return stay{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return resolveStay(guestID, roomID, day)
}

func handleOptions(expected *int64) []eventsourcing.Option {
	if expected == nil {
		return nil
	}
	return []eventsourcing.Option{eventsourcing.ExpectedVersion(*expected)}
}

func commandResult(s stay, res eventsourcing.Result[guests.Event]) dto.StayCommandResult {
	evs := res.Events()
	out := dto.StayCommandResult{
		AccountID:   s.accountID.String(),
		GuestID:     s.guestID,
		RoomID:      s.roomID,
		CheckInDate: s.day.String(),
		Version:     res.NextExpectedVersion,
		Events:      events.Names(evs),
	}
	if reason, failed := guests.CheckoutFailure(evs); failed {
		out.CheckoutFailure = reason
	}
	return out
}

func clockOrNow(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

func newIDOr(gen func() string) string {
	if gen != nil {
		return gen()
	}
	return uuid.NewString()
}
