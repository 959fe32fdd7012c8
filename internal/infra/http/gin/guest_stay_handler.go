package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"gueststay/internal/app/commands"
	"gueststay/internal/app/dto"
	"gueststay/internal/app/handlers/gueststay"
	"gueststay/internal/app/queries"
	"gueststay/internal/domain/shared/money"
)

var errInvalidPrecondition = errors.New("invalid If-Match header")

type GuestStayHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type amountRequest struct {
	Amount money.Money `json:"amount"`
}

func (h GuestStayHandler) CheckIn(c *gin.Context) {
	expected, ok := h.ifMatch(c)
	if !ok {
		return
	}
	cmd := gueststay.CheckInCommand{
		GuestID:         c.Param("guestId"),
		RoomID:          c.Param("roomId"),
		ExpectedVersion: expected,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	res, err := commands.Dispatch[gueststay.CheckInCommand, dto.StayCommandResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Location", stayLocation(res))
	setETag(c, res.Version)
	c.JSON(http.StatusCreated, res)
}

func (h GuestStayHandler) RecordCharge(c *gin.Context) {
	expected, ok := h.ifMatch(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	cmd := gueststay.RecordChargeCommand{
		GuestID:         c.Param("guestId"),
		RoomID:          c.Param("roomId"),
		CheckInDate:     c.Param("checkInDate"),
		Amount:          req.Amount,
		ExpectedVersion: expected,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	res, err := commands.Dispatch[gueststay.RecordChargeCommand, dto.StayCommandResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	setETag(c, res.Version)
	c.Status(http.StatusNoContent)
}

func (h GuestStayHandler) RecordPayment(c *gin.Context) {
	expected, ok := h.ifMatch(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondWithError(c, http.StatusBadRequest, err)
		return
	}
	cmd := gueststay.RecordPaymentCommand{
		GuestID:         c.Param("guestId"),
		RoomID:          c.Param("roomId"),
		CheckInDate:     c.Param("checkInDate"),
		Amount:          req.Amount,
		ExpectedVersion: expected,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	res, err := commands.Dispatch[gueststay.RecordPaymentCommand, dto.StayCommandResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	setETag(c, res.Version)
	c.Status(http.StatusNoContent)
}

// CheckOut answers 403 with the recorded reason when the balance is not
// settled; the failed attempt is still part of the stream.
func (h GuestStayHandler) CheckOut(c *gin.Context) {
	expected, ok := h.ifMatch(c)
	if !ok {
		return
	}
	cmd := gueststay.CheckOutCommand{
		GuestID:         c.Param("guestId"),
		RoomID:          c.Param("roomId"),
		CheckInDate:     c.Param("checkInDate"),
		ExpectedVersion: expected,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	res, err := commands.Dispatch[gueststay.CheckOutCommand, dto.StayCommandResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	setETag(c, res.Version)
	if res.CheckoutFailure != "" {
		c.JSON(http.StatusForbidden, gin.H{"error": res.CheckoutFailure})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h GuestStayHandler) Details(c *gin.Context) {
	q := gueststay.GetDetailsQuery{
		GuestID:     c.Param("guestId"),
		RoomID:      c.Param("roomId"),
		CheckInDate: c.Param("checkInDate"),
	}
	res, err := queries.Ask[gueststay.GetDetailsQuery, dto.GuestStayDetails](c.Request.Context(), h.Queries, q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	tag := etag(res.Version)
	c.Header("ETag", tag)
	if match := c.GetHeader("If-None-Match"); match != "" && sameVersion(match, res.Version) {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h GuestStayHandler) ExportFolio(c *gin.Context) {
	q := gueststay.ExportFolioQuery{
		GuestID:     c.Param("guestId"),
		RoomID:      c.Param("roomId"),
		CheckInDate: c.Param("checkInDate"),
	}
	res, err := queries.Ask[gueststay.ExportFolioQuery, dto.FolioExport](c.Request.Context(), h.Queries, q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ifMatch parses the optional If-Match header into an expected stream
// version. It writes a 400 and returns false when the header is malformed.
func (h GuestStayHandler) ifMatch(c *gin.Context) (*int64, bool) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" {
		return nil, true
	}
	v, err := parseETag(raw)
	if err != nil {
		h.respondWithError(c, http.StatusBadRequest, errInvalidPrecondition)
		return nil, false
	}
	return &v, true
}

func stayLocation(res dto.StayCommandResult) string {
	return fmt.Sprintf("/api/v1/guests/%s/stays/%s/periods/%s",
		url.PathEscape(res.GuestID), url.PathEscape(res.RoomID), url.PathEscape(res.CheckInDate))
}

func etag(version int64) string {
	return `W/"` + strconv.FormatInt(version, 10) + `"`
}

func setETag(c *gin.Context, version int64) {
	c.Header("ETag", etag(version))
}

// parseETag accepts W/"3", "3" and 3.
func parseETag(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, errInvalidPrecondition
	}
	return v, nil
}

func sameVersion(header string, version int64) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "*" {
			return true
		}
		if v, err := parseETag(part); err == nil && v == version {
			return true
		}
	}
	return false
}

var _ GuestStayHTTP = GuestStayHandler{}
