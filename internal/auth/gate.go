// internal/auth/gate.go
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadHash means the stored credential is not a bcrypt hash.
var ErrBadHash = errors.New("auth: stored credential is not a valid hash")

// Gate checks request credentials against the process-wide passphrase hash.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	hash []byte
}

// NewGate wraps a bcrypt hash.
func NewGate(hash []byte) (*Gate, error) {
	if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHash, err)
	}
	h := make([]byte, len(hash))
	copy(h, hash)
	return &Gate{hash: h}, nil
}

// Check reports whether provided matches the passphrase.
// The comparison runs in constant time with respect to the stored hash.
func (g *Gate) Check(provided string) bool {
	if g == nil || len(g.hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(provided)) == nil
}

// Hash derives a salted hash for a passphrase.
func Hash(passphrase string, cost int) ([]byte, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(passphrase), cost)
}
