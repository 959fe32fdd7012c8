package validation

import (
	"context"
	"errors"
	"testing"

	"gueststay/internal/app/handlers/gueststay"
	"gueststay/internal/app/middleware"
	"gueststay/internal/domain/shared/money"
)

func TestValidateChargeCommand(t *testing.T) {
	v := New()
	negative := int64(-1)
	tests := []struct {
		name   string
		cmd    gueststay.RecordChargeCommand
		fields []string
	}{
		{
			name: "valid",
			cmd:  gueststay.RecordChargeCommand{GuestID: "g", RoomID: "r", CheckInDate: "2024-03-09", Amount: money.MustParse("10")},
		},
		{
			name:   "zero amount",
			cmd:    gueststay.RecordChargeCommand{GuestID: "g", RoomID: "r", CheckInDate: "2024-03-09", Amount: money.Zero},
			fields: []string{"amount"},
		},
		{
			name:   "negative amount",
			cmd:    gueststay.RecordChargeCommand{GuestID: "g", RoomID: "r", CheckInDate: "2024-03-09", Amount: money.MustParse("-3")},
			fields: []string{"amount"},
		},
		{
			name:   "missing ids and bad date",
			cmd:    gueststay.RecordChargeCommand{CheckInDate: "09.03.2024", Amount: money.MustParse("1")},
			fields: []string{"guestID", "roomID", "checkInDate"},
		},
		{
			name:   "negative expected version",
			cmd:    gueststay.RecordChargeCommand{GuestID: "g", RoomID: "r", CheckInDate: "2024-03-09", Amount: money.MustParse("1"), ExpectedVersion: &negative},
			fields: []string{"expectedVersion"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tt.cmd)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("expected valid command, got %v", err)
				}
				return
			}
			if !errors.Is(err, middleware.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Fatalf("expected fields %v, got %+v", tt.fields, verr.Fields)
			}
			for i, field := range tt.fields {
				if verr.Fields[i].Field != field {
					t.Fatalf("expected field %s, got %s", field, verr.Fields[i].Field)
				}
			}
		})
	}
}

func TestValidateIgnoresNonStructs(t *testing.T) {
	if err := New().Validate(context.Background(), "plain"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := New().Validate(context.Background(), nil); !errors.Is(err, middleware.ErrValidation) {
		t.Fatalf("expected ErrValidation for nil, got %v", err)
	}
}
