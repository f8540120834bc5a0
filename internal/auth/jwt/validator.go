package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

// Error definitions.
var (
	ErrTokenExpired = errors.New("svcuid has expired")
	ErrInvalidToken = errors.New("invalid svcuid")
)

// Validator validates SVCUID tokens presented by components on IPC
// requests.
type Validator interface {
	// Validate validates an SVCUID and returns its claims.
	Validate(tokenString string) (*Claims, error)

	// ValidateWithClaims validates a token and populates arbitrary claims.
	ValidateWithClaims(tokenString string, claims jwt.Claims) error
}

// JWTValidator implements Validator.
type JWTValidator struct {
	secretKey []byte
}

// NewJWTValidator creates a new JWTValidator sharing the broker's
// per-process signing key with its Generator.
func NewJWTValidator(secretKey []byte) *JWTValidator {
	return &JWTValidator{secretKey: secretKey}
}

// Validate implements Validator.Validate.
func (v *JWTValidator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := v.ValidateWithClaims(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateWithClaims implements Validator.ValidateWithClaims.
func (v *JWTValidator) ValidateWithClaims(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apierrors.WrapKind(err, ErrTokenExpired, "svcuid has expired")
		}
		return apierrors.WrapKind(err, ErrInvalidToken, "validating svcuid")
	}

	if !token.Valid {
		return apierrors.WrapKind(fmt.Errorf("token marked invalid"), ErrInvalidToken, "svcuid is invalid")
	}

	return nil
}
