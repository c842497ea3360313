package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by every mentorlink bearer token.
// Tokens are issued by the identity service; the mentorship API only reads them.
type Payload struct {
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the user's identifier in the alumni directory.
	ID string `json:"id"`

	// Role is either "student" or "alumni" and decides which mentorship side the caller is on.
	Role string `json:"role"`

	// DisplayName is shown to the counterpart in listings and threads.
	DisplayName string `json:"display_name,omitempty"`
}
