package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"gueststay/internal/app/eventstore"
)

// isTransient reports write conflicts between concurrent transactions.
func isTransient(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(112)
	}
	return false
}

// asConflict maps losing a write race to eventstore.ErrConcurrencyConflict.
func asConflict(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) || isTransient(err) {
		return errors.Join(eventstore.ErrConcurrencyConflict, err)
	}
	return err
}
