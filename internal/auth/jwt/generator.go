package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Generator mints SVCUID tokens for component core-bus connections.
type Generator interface {
	// Generate mints an SVCUID for a component connection using the
	// generator's default expiration.
	Generate(componentName string, generation, slot uint16) (string, error)

	// GenerateWithExpiration mints an SVCUID with a specific expiration.
	GenerateWithExpiration(componentName string, generation, slot uint16, expiration time.Duration) (string, error)

	// Parse parses and validates an SVCUID.
	Parse(tokenString string) (*Claims, error)
}

// JWTGenerator implements Generator using HMAC signing with a key that
// is generated fresh for each nucleus process and never leaves it:
// SVCUIDs authenticate a connection to this broker instance only, they
// are never verified by another process.
type JWTGenerator struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
}

// NewJWTGenerator creates a new JWTGenerator.
func NewJWTGenerator(secretKey []byte, issuer string, expiresIn time.Duration) *JWTGenerator {
	return &JWTGenerator{
		secretKey: secretKey,
		issuer:    issuer,
		expiresIn: expiresIn,
	}
}

// Generate implements Generator.Generate.
func (g *JWTGenerator) Generate(componentName string, generation, slot uint16) (string, error) {
	return g.GenerateWithExpiration(componentName, generation, slot, g.expiresIn)
}

// GenerateWithExpiration implements Generator.GenerateWithExpiration.
func (g *JWTGenerator) GenerateWithExpiration(componentName string, generation, slot uint16, expiration time.Duration) (string, error) {
	now := time.Now()

	registeredClaims := jwt.RegisteredClaims{
		Issuer:    g.issuer,
		Subject:   componentName,
		ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	claims := NewClaims(componentName, generation, slot, registeredClaims)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", fmt.Errorf("signing svcuid: %w", err)
	}

	return tokenString, nil
}

// Parse implements Generator.Parse.
func (g *JWTGenerator) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing svcuid: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid svcuid claims")
	}

	return claims, nil
}
