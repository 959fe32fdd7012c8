package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gueststay/internal/app/readmodel"
	"gueststay/internal/domain/shared/money"
)

const detailsCollection = "guest_stay_details"

// DetailsStore persists projected stay documents. Upserts only replace a
// document with an older version, so a late writer never rolls one back.
type DetailsStore struct {
	col *mongo.Collection
}

func NewDetailsStore(db *mongo.Database) *DetailsStore {
	return &DetailsStore{col: db.Collection(detailsCollection)}
}

func (s *DetailsStore) ByID(ctx context.Context, id string) (readmodel.GuestStayDetails, bool, error) {
	var doc detailsDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return readmodel.GuestStayDetails{}, false, nil
		}
		return readmodel.GuestStayDetails{}, false, err
	}
	out, err := doc.toModel()
	if err != nil {
		return readmodel.GuestStayDetails{}, false, err
	}
	return out, true, nil
}

func (s *DetailsStore) Upsert(ctx context.Context, model readmodel.GuestStayDetails) error {
	doc, err := newDetailsDocument(model)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": doc.ID, "version": bson.M{"$lt": doc.Version}}
	_, err = s.col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// A document at the same or a newer version already exists.
		return nil
	}
	if isTransient(err) {
		return asConflict(err)
	}
	return err
}

type transactionDocument struct {
	ID     string               `bson:"id"`
	Amount primitive.Decimal128 `bson:"amount"`
}

type detailsDocument struct {
	ID                string                `bson:"_id"`
	GuestID           string                `bson:"guest_id"`
	RoomID            string                `bson:"room_id"`
	Status            string                `bson:"status"`
	Balance           primitive.Decimal128  `bson:"balance"`
	TransactionsCount int                   `bson:"transactions_count"`
	Transactions      []transactionDocument `bson:"transactions"`
	CheckedInAt       time.Time             `bson:"checked_in_at"`
	CheckedOutAt      *time.Time            `bson:"checked_out_at,omitempty"`
	Version           int64                 `bson:"version"`
}

func newDetailsDocument(m readmodel.GuestStayDetails) (detailsDocument, error) {
	balance, err := toDecimal128(m.Balance)
	if err != nil {
		return detailsDocument{}, err
	}
	txs := make([]transactionDocument, 0, len(m.Transactions))
	for _, tx := range m.Transactions {
		amount, err := toDecimal128(tx.Amount)
		if err != nil {
			return detailsDocument{}, err
		}
		txs = append(txs, transactionDocument{ID: tx.ID, Amount: amount})
	}
	return detailsDocument{
		ID:                m.ID,
		GuestID:           m.GuestID,
		RoomID:            m.RoomID,
		Status:            string(m.Status),
		Balance:           balance,
		TransactionsCount: m.TransactionsCount,
		Transactions:      txs,
		CheckedInAt:       m.CheckedInAt,
		CheckedOutAt:      m.CheckedOutAt,
		Version:           m.Version,
	}, nil
}

func (d detailsDocument) toModel() (readmodel.GuestStayDetails, error) {
	balance, err := fromDecimal128(d.Balance)
	if err != nil {
		return readmodel.GuestStayDetails{}, err
	}
	txs := make([]readmodel.Transaction, 0, len(d.Transactions))
	for _, tx := range d.Transactions {
		amount, err := fromDecimal128(tx.Amount)
		if err != nil {
			return readmodel.GuestStayDetails{}, err
		}
		txs = append(txs, readmodel.Transaction{ID: tx.ID, Amount: amount})
	}
	out := readmodel.GuestStayDetails{
		ID:                d.ID,
		GuestID:           d.GuestID,
		RoomID:            d.RoomID,
		Status:            readmodel.Status(d.Status),
		Balance:           balance,
		TransactionsCount: d.TransactionsCount,
		Transactions:      txs,
		CheckedInAt:       d.CheckedInAt.UTC(),
		Version:           d.Version,
	}
	if d.CheckedOutAt != nil {
		at := d.CheckedOutAt.UTC()
		out.CheckedOutAt = &at
	}
	return out, nil
}

func toDecimal128(m money.Money) (primitive.Decimal128, error) {
	d, err := primitive.ParseDecimal128(m.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("mongo: encode amount %s: %w", m, err)
	}
	return d, nil
}

func fromDecimal128(d primitive.Decimal128) (money.Money, error) {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return money.Zero, fmt.Errorf("mongo: decode amount %s: %w", d, err)
	}
	return money.New(v), nil
}

var _ readmodel.Store = (*DetailsStore)(nil)
