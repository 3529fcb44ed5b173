// Package idgen generates identifiers for editor sessions and the surrogate
// keys of tariffs and plans.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Key prefixes for editor entities.
const (
	TariffPrefix = "trf_"
	PlanPrefix   = "pln_"
)

// Session returns a random UUIDv4 used as an editor session id.
func Session() string {
	return uuid.NewString()
}

// ValidSession reports whether s looks like an id produced by Session.
func ValidSession(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// WithPrefix returns prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// TariffKey returns a new surrogate key for a tariff.
func TariffKey() string { return WithPrefix(TariffPrefix) }

// PlanKey returns a new surrogate key for a plan.
func PlanKey() string { return WithPrefix(PlanPrefix) }
