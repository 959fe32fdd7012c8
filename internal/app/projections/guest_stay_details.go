package projections

import (
	"context"

	"gueststay/internal/app/eventsourcing"
	"gueststay/internal/app/readmodel"
	"gueststay/internal/app/uow"
	"gueststay/internal/domain/guests"
)

// GuestStayDetails keeps one readmodel.GuestStayDetails document per account
// in step with its stream.
type GuestStayDetails struct{}

// Project folds every envelope newer than the stored document and upserts
// the result. Reapplying already projected envelopes changes nothing.
func (GuestStayDetails) Project(ctx context.Context, unit uow.UnitOfWork, streamID string, stream []eventsourcing.Envelope[guests.Event]) error {
	store := unit.StayDetails()
	doc, found, err := store.ByID(ctx, streamID)
	if err != nil {
		return err
	}
	if !found {
		doc = readmodel.Empty(streamID)
	}
	next, changed := Fold(doc, stream)
	if !changed {
		return nil
	}
	return store.Upsert(ctx, next)
}

// Fold applies the envelopes whose version is above doc.Version.
func Fold(doc readmodel.GuestStayDetails, stream []eventsourcing.Envelope[guests.Event]) (readmodel.GuestStayDetails, bool) {
	changed := false
	for _, env := range stream {
		if env.Version <= doc.Version {
			continue
		}
		doc = readmodel.Evolve(doc, env.Version, env.Event)
		changed = true
	}
	return doc, changed
}

var _ eventsourcing.Projection[guests.Event] = GuestStayDetails{}
