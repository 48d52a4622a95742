// Package auth authenticates dashboard callers before any analytics
// query runs. Credentials are static API keys issued per consuming
// application; secrets are stored as bcrypt hashes so a leaked
// configuration file does not leak usable keys.
package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// CALLER IDENTITY
// ═══════════════════════════════════════════════════════════════════════════

// CallerIdentity describes the authenticated consumer of the read API.
type CallerIdentity struct {
	CallerID uuid.UUID `json:"caller_id"`
	Name     string    `json:"name"`
}

// Credential is one issued API key. The presented key has the form
// "<key_id>.<secret>"; only the bcrypt hash of the secret is kept.
type Credential struct {
	KeyID      string
	SecretHash []byte
	CallerID   uuid.UUID
	CallerName string
}

// ═══════════════════════════════════════════════════════════════════════════
// GATE
// ═══════════════════════════════════════════════════════════════════════════

// Gate validates presented API keys against the issued credential set.
type Gate struct {
	byKeyID map[string]Credential
}

// NewGate creates a Gate from the issued credentials. Credentials with an
// empty key ID or hash are skipped.
func NewGate(credentials []Credential) *Gate {
	byKeyID := make(map[string]Credential, len(credentials))
	for _, c := range credentials {
		if c.KeyID == "" || len(c.SecretHash) == 0 {
			continue
		}
		byKeyID[c.KeyID] = c
	}
	return &Gate{byKeyID: byKeyID}
}

// RequireAuthenticated resolves a presented API key to a caller identity.
// Every failure mode maps to ErrUnauthorized so responses do not reveal
// whether a key ID exists.
func (g *Gate) RequireAuthenticated(ctx context.Context, presented string) (CallerIdentity, error) {
	if presented == "" {
		return CallerIdentity{}, shared.ErrMissingCredential
	}

	keyID, secret, ok := strings.Cut(presented, ".")
	if !ok || keyID == "" || secret == "" {
		return CallerIdentity{}, shared.ErrInvalidCredential
	}

	credential, ok := g.byKeyID[keyID]
	if !ok {
		return CallerIdentity{}, shared.ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword(credential.SecretHash, []byte(secret)); err != nil {
		return CallerIdentity{}, shared.ErrInvalidCredential
	}

	return CallerIdentity{CallerID: credential.CallerID, Name: credential.CallerName}, nil
}

// HashSecret produces the bcrypt hash stored for a new API key. Used by
// provisioning tooling, never on the request path.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}
