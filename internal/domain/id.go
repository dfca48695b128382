package domain

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID returns a fresh ObjectID in hex form. IDs generated by one process
// compare greater the later they were created, which the ledger tie-break
// relies on. That holds only within one process and only while the 24-bit
// counter does not wrap inside one second. Between processes, IDs minted in
// the same second order by the random process field instead.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ParseID validates s as an ObjectID and returns its canonical lowercase form.
func ParseID(s string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return oid.Hex(), nil
}
