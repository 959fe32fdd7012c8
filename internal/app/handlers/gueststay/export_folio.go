package gueststay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gueststay/internal/app/dto"
	"gueststay/internal/app/readmodel"
	"gueststay/internal/app/uow"
)

var ErrFolioUnavailable = errors.New("gueststay: folio export is not configured")

// FolioRenderer lays out a stay document, closed or not, as a printable folio.
type FolioRenderer interface {
	Render(doc readmodel.GuestStayDetails) ([]byte, error)
	ContentType() string
}

// FolioStorage stores rendered folios and returns their URL.
type FolioStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

// ExportFolioQuery renders any stay that was ever opened, including closed
// ones that the details query no longer returns.
type ExportFolioQuery struct {
	GuestID     string `validate:"required,max=128"`
	RoomID      string `validate:"required,max=128"`
	CheckInDate string `validate:"required,datetime=2006-01-02"`
}

func (q ExportFolioQuery) Key() string { return exportFolioKey }

type ExportFolioHandler struct {
	UoWFactory uow.UoWFactory
	Renderer   FolioRenderer
	Storage    FolioStorage
	Clock      func() time.Time
}

func (h *ExportFolioHandler) Handle(ctx context.Context, q ExportFolioQuery) (dto.FolioExport, error) {
	if h.Renderer == nil || h.Storage == nil {
		return dto.FolioExport{}, ErrFolioUnavailable
	}
	s, err := resolveStayDate(q.GuestID, q.RoomID, q.CheckInDate)
	if err != nil {
		return dto.FolioExport{}, err
	}
	doc, found, err := loadDetails(ctx, h.UoWFactory, s.accountID.String())
	if err != nil {
		return dto.FolioExport{}, err
	}
	if !found || doc.Status == readmodel.StatusNotExisting {
		return dto.FolioExport{}, ErrStayNotFound
	}
	body, err := h.Renderer.Render(doc)
	if err != nil {
		return dto.FolioExport{}, fmt.Errorf("gueststay: render folio: %w", err)
	}
	key := folioKey(doc, clockOrNow(h.Clock))
	url, err := h.Storage.Upload(ctx, key, bytes.NewReader(body), h.Renderer.ContentType())
	if err != nil {
		return dto.FolioExport{}, err
	}
	return dto.FolioExport{
		AccountID: doc.ID,
		Version:   doc.Version,
		ObjectKey: key,
		URL:       url,
	}, nil
}

func folioKey(doc readmodel.GuestStayDetails, now time.Time) string {
	return fmt.Sprintf("folios/%s/v%d-%d.pdf", doc.ID, doc.Version, now.Unix())
}
