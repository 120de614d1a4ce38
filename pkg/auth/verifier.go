// Package auth supplies the identity collaborator for the gateway. Session
// issuance lives elsewhere; the gateway only maps an already-issued bearer
// credential to a user identifier.
package auth

import "errors"

// ErrInvalidToken is returned when a bearer credential is unknown or empty.
var ErrInvalidToken = errors.New("invalid token")

// Verifier resolves a bearer token to the owning user ID.
type Verifier interface {
	Verify(token string) (userID string, err error)
}

// StaticVerifier is a Verifier backed by a fixed token-to-user table, loaded
// once from configuration.
type StaticVerifier struct {
	users map[string]string
}

// NewStaticVerifier builds a verifier from a token -> user-ID mapping. The
// map is copied so later mutation of the argument has no effect.
func NewStaticVerifier(users map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(users))
	for token, userID := range users {
		copied[token] = userID
	}
	return &StaticVerifier{users: copied}
}

func (v *StaticVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	userID, ok := v.users[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
