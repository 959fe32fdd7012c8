package gueststay

import (
	"gueststay/internal/app/commands"
	"gueststay/internal/app/dto"
	"gueststay/internal/app/queries"
)

// Module groups the guest stay handlers for bus registration.
type Module struct {
	CheckIn       *CheckInHandler
	RecordCharge  *RecordChargeHandler
	RecordPayment *RecordPaymentHandler
	CheckOut      *CheckOutHandler
	GetDetails    *GetDetailsHandler
	ExportFolio   *ExportFolioHandler
}

func (m Module) RegisterCommands(bus *commands.InMemoryBus) {
	commands.RegisterHandler[CheckInCommand, dto.StayCommandResult](bus, checkInKey, m.CheckIn)
	commands.RegisterHandler[RecordChargeCommand, dto.StayCommandResult](bus, recordChargeKey, m.RecordCharge)
	commands.RegisterHandler[RecordPaymentCommand, dto.StayCommandResult](bus, recordPaymentKey, m.RecordPayment)
	commands.RegisterHandler[CheckOutCommand, dto.StayCommandResult](bus, checkOutKey, m.CheckOut)
}

func (m Module) RegisterQueries(bus *queries.InMemoryBus) {
	queries.RegisterHandler[GetDetailsQuery, dto.GuestStayDetails](bus, getDetailsKey, m.GetDetails)
	folio := m.ExportFolio
	if folio == nil {
		// keeps the route answering ErrFolioUnavailable instead of an unknown key
		folio = &ExportFolioHandler{}
	}
	queries.RegisterHandler[ExportFolioQuery, dto.FolioExport](bus, exportFolioKey, folio)
}
