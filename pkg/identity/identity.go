// Package identity verifies callers and anchors them to stored users.
//
// A [Verifier] turns an opaque bearer token into an [Identity]; the
// [Users] store materializes the identity as a durable [User] row on
// first contact and carries the user's voiceprint once enrolled.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrUnverified marks an unknown or unverifiable caller. The caller
// must re-authenticate.
var ErrUnverified = errors.New("identity: unverified caller")

// Identity is a verified caller.
type Identity struct {
	// ID is the stable external identity, unique per caller.
	ID string

	Email string
	Name  string
}

// DisplayName returns the caller's name, falling back to the email
// local part and then to the bare id.
func (id Identity) DisplayName() string {
	if id.Name != "" {
		return id.Name
	}
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		return id.Email[:at]
	}
	return id.ID
}

// Verifier authenticates opaque bearer tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticVerifier resolves tokens from a fixed table. It backs
// development and test deployments where no external identity provider
// is wired in.
type StaticVerifier struct {
	tokens map[string]Identity
}

var _ Verifier = (*StaticVerifier)(nil)

// NewStaticVerifier creates a verifier over a token table.
func NewStaticVerifier(tokens map[string]Identity) *StaticVerifier {
	v := &StaticVerifier{tokens: make(map[string]Identity, len(tokens))}
	for token, id := range tokens {
		v.tokens[token] = id
	}
	return v
}

// Verify resolves token against the table.
func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	id, ok := v.tokens[token]
	if !ok {
		return Identity{}, ErrUnverified
	}
	return id, nil
}
