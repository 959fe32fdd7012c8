package memory

import (
	"context"
	"errors"
	"sync"

	"gueststay/internal/app/eventstore"
	appoutbox "gueststay/internal/app/outbox"
	"gueststay/internal/app/readmodel"
	"gueststay/internal/app/uow"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnly             = errors.New("memory: unit of work is read-only")
)

// Factory starts units of work over a Store.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		appends:  make(map[string]pendingAppend),
		docs:     make(map[string]readmodel.GuestStayDetails),
	}, nil
}

type pendingAppend struct {
	expected int64
	records  []eventstore.Record
}

// Unit reads committed data plus its own staged writes. Nothing is visible
// to other units until Commit, which fails with a concurrency conflict if
// any appended stream moved in the meantime.
type Unit struct {
	mu       sync.Mutex
	store    *Store
	readOnly bool
	done     bool
	appends  map[string]pendingAppend
	docs     map[string]readmodel.GuestStayDetails
	messages []appoutbox.EventRecord
}

func (u *Unit) Events() eventstore.Store { return unitEvents{u} }

func (u *Unit) StayDetails() readmodel.Store { return unitDetails{u} }

func (u *Unit) Outbox() appoutbox.Outbox {
	if !u.store.outbox {
		return nil
	}
	return unitOutbox{u}
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.done = true
	return u.store.commit(u)
}

func (u *Unit) Rollback(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.appends = nil
	u.docs = nil
	u.messages = nil
	return nil
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

type unitEvents struct{ u *Unit }

func (e unitEvents) Read(ctx context.Context, streamID string) ([]eventstore.Record, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	e.u.store.mu.RLock()
	committed := append([]eventstore.Record(nil), e.u.store.streams[streamID]...)
	e.u.store.mu.RUnlock()

	e.u.mu.Lock()
	defer e.u.mu.Unlock()
	if pending, ok := e.u.appends[streamID]; ok && pending.expected == eventstore.Version(committed) {
		committed = append(committed, pending.records...)
	}
	return committed, eventstore.Version(committed), nil
}

func (e unitEvents) Append(ctx context.Context, streamID string, expectedVersion int64, records []eventstore.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.u.mu.Lock()
	defer e.u.mu.Unlock()
	if err := e.u.writable(); err != nil {
		return 0, err
	}
	var base int64
	staged := e.u.appends[streamID]
	if len(staged.records) > 0 {
		base = eventstore.Version(staged.records)
	} else {
		e.u.store.mu.RLock()
		base = eventstore.Version(e.u.store.streams[streamID])
		e.u.store.mu.RUnlock()
		staged.expected = base
	}
	if base != expectedVersion {
		return 0, eventstore.ErrConcurrencyConflict
	}
	for i, rec := range records {
		if rec.Version != expectedVersion+int64(i)+1 {
			return 0, eventstore.ErrConcurrencyConflict
		}
	}
	staged.records = append(staged.records, records...)
	e.u.appends[streamID] = staged
	return eventstore.Version(staged.records), nil
}

type unitDetails struct{ u *Unit }

func (d unitDetails) ByID(ctx context.Context, id string) (readmodel.GuestStayDetails, bool, error) {
	if err := ctx.Err(); err != nil {
		return readmodel.GuestStayDetails{}, false, err
	}
	d.u.mu.Lock()
	doc, ok := d.u.docs[id]
	d.u.mu.Unlock()
	if ok {
		return cloneDetails(doc), true, nil
	}
	d.u.store.mu.RLock()
	defer d.u.store.mu.RUnlock()
	doc, ok = d.u.store.details[id]
	if !ok {
		return readmodel.GuestStayDetails{}, false, nil
	}
	return cloneDetails(doc), true, nil
}

func (d unitDetails) Upsert(ctx context.Context, doc readmodel.GuestStayDetails) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.u.mu.Lock()
	defer d.u.mu.Unlock()
	if err := d.u.writable(); err != nil {
		return err
	}
	d.u.docs[doc.ID] = cloneDetails(doc)
	return nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.u.mu.Lock()
	defer o.u.mu.Unlock()
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.messages = append(o.u.messages, record)
	return nil
}

var _ uow.UnitOfWork = (*Unit)(nil)
