package jwt

import (
	"testing"
	"time"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "test-issuer"
	testComponent = "com.example.TestComponent"
)

func TestJWTGenerator_Generate(t *testing.T) {
	generator := NewJWTGenerator([]byte(testSecret), testIssuer, 15*time.Minute)

	token, err := generator.Generate(testComponent, 1, 2)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Generated token is empty")
	}

	claims, err := generator.Parse(token)
	if err != nil {
		t.Fatalf("Failed to parse generated token: %v", err)
	}

	if claims.ComponentName != testComponent {
		t.Errorf("Expected ComponentName to be %q, got %q", testComponent, claims.ComponentName)
	}
	if claims.Generation != 1 {
		t.Errorf("Expected Generation to be 1, got %d", claims.Generation)
	}
	if claims.Slot != 2 {
		t.Errorf("Expected Slot to be 2, got %d", claims.Slot)
	}
	if claims.Issuer != testIssuer {
		t.Errorf("Expected Issuer to be %q, got %q", testIssuer, claims.Issuer)
	}

	now := time.Now()
	expTime := claims.ExpiresAt.Time
	expectedExp := now.Add(15 * time.Minute)
	tolerance := 2 * time.Second

	diff := expTime.Sub(expectedExp)
	if diff < -tolerance || diff > tolerance {
		t.Errorf("Expiration time is not within expected range. Got %v, expected around %v (diff: %v)",
			expTime, expectedExp, diff)
	}
}

func TestJWTGenerator_GenerateWithExpiration(t *testing.T) {
	generator := NewJWTGenerator([]byte(testSecret), testIssuer, 15*time.Minute)

	customExpiration := 5 * time.Minute
	token, err := generator.GenerateWithExpiration(testComponent, 1, 2, customExpiration)
	if err != nil {
		t.Fatalf("Failed to generate token with custom expiration: %v", err)
	}

	claims, err := generator.Parse(token)
	if err != nil {
		t.Fatalf("Failed to parse generated token: %v", err)
	}

	now := time.Now()
	expTime := claims.ExpiresAt.Time
	expectedExp := now.Add(customExpiration)
	tolerance := 2 * time.Second

	diff := expTime.Sub(expectedExp)
	if diff < -tolerance || diff > tolerance {
		t.Errorf("Expiration time is not within expected range. Got %v, expected around %v (diff: %v)",
			expTime, expectedExp, diff)
	}
}

func TestJWTGenerator_Parse(t *testing.T) {
	generator := NewJWTGenerator([]byte(testSecret), testIssuer, 15*time.Minute)

	validToken, err := generator.Generate(testComponent, 1, 2)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := generator.Parse(validToken)
	if err != nil {
		t.Errorf("Failed to parse valid token: %v", err)
	}
	if claims == nil {
		t.Fatal("Claims are nil for valid token")
	}
	if claims.ComponentName != testComponent {
		t.Errorf("Expected ComponentName to be %q, got %q", testComponent, claims.ComponentName)
	}

	invalidToken := validToken + "invalid"
	if _, err := generator.Parse(invalidToken); err == nil {
		t.Error("Expected error when parsing invalid token, got nil")
	}

	otherGenerator := NewJWTGenerator([]byte("a-different-secret"), testIssuer, 15*time.Minute)
	otherToken, err := otherGenerator.Generate(testComponent, 1, 2)
	if err != nil {
		t.Fatalf("Failed to generate token with other secret: %v", err)
	}
	if _, err := generator.Parse(otherToken); err == nil {
		t.Error("Expected error when parsing token signed with a different secret, got nil")
	}

	expiredToken, err := generator.GenerateWithExpiration(testComponent, 1, 2, -time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate expired token: %v", err)
	}
	if _, err := generator.Parse(expiredToken); err == nil {
		t.Error("Expected error when parsing expired token, got nil")
	}
}
