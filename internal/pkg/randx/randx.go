/*
Package randx provides generation and validation of unique identifiers.

It mints the UUID-based user identities handed out at join time.
*/
package randx

import (
	"github.com/google/uuid"
)

// UserID generates a UUID v4 string used as the unique identity of a
// connected participant. Identities are minted once at join time and
// never reused.
func UserID() string {
	return uuid.New().String()
}

// IsValidUserID reports whether the given string parses as a UUID.
func IsValidUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
