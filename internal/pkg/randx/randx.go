/*
Package randx generates identifiers.

Server-side records use UUIDs. Provisional client-side messages use a "local_" prefixed ULID,
which sorts by creation time and can never collide with a server id.
*/
package randx

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// LocalIDPrefix marks ids minted by a client before the server confirmed the record.
const LocalIDPrefix = "local_"

// MessageID returns a new UUID v4 for a stored message.
func MessageID() string {
	return uuid.New().String()
}

// FileID returns a new UUID v4 for a stored attachment.
func FileID() string {
	return uuid.New().String()
}

// RelationshipID returns a new UUID v4 for a mentorship relationship.
func RelationshipID() string {
	return uuid.New().String()
}

// LocalMessageID returns a provisional message id for an optimistic entry created at now.
func LocalMessageID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return LocalIDPrefix + ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// IsLocalID reports whether id was minted by LocalMessageID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// IsUUID reports whether s is a canonical UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
