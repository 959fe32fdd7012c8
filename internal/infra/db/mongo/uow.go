package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"gueststay/internal/app/eventstore"
	appoutbox "gueststay/internal/app/outbox"
	"gueststay/internal/app/readmodel"
	"gueststay/internal/app/uow"
	infraoutbox "gueststay/internal/infra/outbox"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
//
// With Events left nil the event log lives in MongoDB and every write of a
// unit commits in one transaction. A non-nil Events store (Scylla) appends
// outside the transaction; the details projection then catches up on the
// next command for the stream if the Mongo commit is lost.
type Factory struct {
	DB     *mongo.Database
	Events eventstore.Store
	Outbox *infraoutbox.MongoStore
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	unit := &Unit{
		details:  NewDetailsStore(f.DB),
		outbox:   f.Outbox,
		external: f.Events != nil,
	}
	if f.Events != nil {
		unit.events = f.Events
	} else {
		unit.events = NewEventStore(f.DB)
	}
	if opts.ReadOnly {
		return unit, nil
	}
	if unit.external {
		unit.details = deferredDetails{unit.details}
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.session = session
	return unit, nil
}

// Unit is one MongoDB transaction. Read-only units carry no session.
type Unit struct {
	session  mongo.Session
	events   eventstore.Store
	details  readmodel.Store
	outbox   *infraoutbox.MongoStore
	external bool

	once sync.Once
}

func (u *Unit) Events() eventstore.Store { return u.events }

func (u *Unit) StayDetails() readmodel.Store { return u.details }

func (u *Unit) Outbox() appoutbox.Outbox {
	if u.outbox == nil {
		return nil
	}
	if u.external {
		return deferredOutbox{u.outbox}
	}
	return u.outbox
}

// Commit commits the transaction. A transient commit failure is reported as a
// concurrency conflict only when the events were part of the transaction;
// with an external event log the append has already happened and the
// command must not be decided again.
func (u *Unit) Commit(ctx context.Context) error {
	if u.session == nil {
		return nil
	}
	var err error
	u.once.Do(func() {
		defer u.session.EndSession(ctx)
		err = u.session.CommitTransaction(ctx)
	})
	if err == nil {
		return nil
	}
	if u.external {
		return fmt.Errorf("%w: %v", ErrProjectionDeferred, err)
	}
	if isTransient(err) {
		return asConflict(err)
	}
	return err
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.session == nil {
		return nil
	}
	var err error
	u.once.Do(func() {
		defer u.session.EndSession(ctx)
		err = u.session.AbortTransaction(ctx)
	})
	return err
}

// InjectContext binds the session so collection calls made with the returned
// context join the transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	if u.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

// ErrProjectionDeferred is returned when the details document could not be
// written after the events were appended to an external log.
var ErrProjectionDeferred = uow.ErrProjectionDeferred

// deferredDetails and deferredOutbox mark every document and outbox failure
// of a writable unit as deferred. In such a unit they are only reached after
// the external append has happened, and the command must not be decided again.
type deferredDetails struct {
	readmodel.Store
}

func (d deferredDetails) ByID(ctx context.Context, id string) (readmodel.GuestStayDetails, bool, error) {
	doc, found, err := d.Store.ByID(ctx, id)
	if err != nil {
		return readmodel.GuestStayDetails{}, false, fmt.Errorf("%w: %v", ErrProjectionDeferred, err)
	}
	return doc, found, nil
}

func (d deferredDetails) Upsert(ctx context.Context, doc readmodel.GuestStayDetails) error {
	if err := d.Store.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrProjectionDeferred, err)
	}
	return nil
}

type deferredOutbox struct {
	appoutbox.Outbox
}

func (d deferredOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := d.Outbox.Add(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrProjectionDeferred, err)
	}
	return nil
}

var (
	_ uow.UnitOfWork      = (*Unit)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
)
