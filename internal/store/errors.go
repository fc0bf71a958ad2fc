package store

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when no document matches.
var ErrNotFound = errors.New("store: document not found")

// InvalidIDError reports a path id that is not a valid ObjectID.
type InvalidIDError struct {
	Value string
}

func (e *InvalidIDError) Error() string { return fmt.Sprintf("invalid _id: %q", e.Value) }

// ParseID converts a hex id from a URL into an ObjectID.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, &InvalidIDError{Value: hex}
	}
	return id, nil
}
