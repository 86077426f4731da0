package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new time-ordered identifier. Ids minted later sort
// after earlier ones, which keeps ledger rows in insertion order.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsID reports whether s is an identifier produced by GenerateID
func IsID(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && (id.Version() == 7 || id.Version() == 4)
}
