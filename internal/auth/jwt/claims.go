package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the custom claims carried by an SVCUID token. Every
// component connection on the core-bus authenticates its IPC requests by
// presenting one of these, minted by the broker at connect time and
// scoped to a single handle-pool generation.
type Claims struct {
	jwt.RegisteredClaims
	ComponentName string `json:"componentName"`
	Generation    uint16 `json:"generation"`
	Slot          uint16 `json:"slot"`
}

// NewClaims creates Claims for a component connection.
func NewClaims(componentName string, generation, slot uint16, registeredClaims jwt.RegisteredClaims) *Claims {
	return &Claims{
		RegisteredClaims: registeredClaims,
		ComponentName:    componentName,
		Generation:       generation,
		Slot:             slot,
	}
}

// Valid checks the expiry, not-before and issued-at bounds and requires a
// component name. It is not part of jwt/v5's Claims interface, so token
// parsing does not call it.
func (c *Claims) Valid() error {
	now := time.Now()

	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return fmt.Errorf("svcuid has expired")
	}

	if c.NotBefore != nil && c.NotBefore.After(now) {
		return fmt.Errorf("svcuid used before valid")
	}

	if c.IssuedAt != nil && c.IssuedAt.After(now.Add(time.Minute)) {
		return fmt.Errorf("svcuid used before issued")
	}

	if c.ComponentName == "" {
		return fmt.Errorf("componentName is required")
	}

	return nil
}

// HandleKey reconstructs the 32-bit handle this SVCUID was minted for,
// matching the (generation, slot) encoding used by the handle pool.
func (c *Claims) HandleKey() uint32 {
	return uint32(c.Generation)<<16 | uint32(c.Slot)
}
