// internal/auth/session.go

// Package auth verifies actor identity tokens. Identity management itself
// (registration, verification) is an external collaborator; this package
// only signs and checks ed25519 JWTs whose subject is the userId.
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL of zero means tokens never expire.
	tokenTTL time.Duration
)

// Init generates a fresh ed25519 key pair at runtime. Useful for tests and
// single-process deployments; restarts invalidate outstanding tokens.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	return parseTokenTTL()
}

// InitFromPath loads the ed25519 key pair from files, so tokens survive
// restarts and multiple processes can verify each other's tokens.
func InitFromPath(privatePath, publicPath string) error {
	privateData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	publicData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}
	privateKey = ed25519.PrivateKey(privateData)
	publicKey = ed25519.PublicKey(publicData)
	return parseTokenTTL()
}

func parseTokenTTL() error {
	raw := os.Getenv("LOOPD_TOKEN_TTL")
	if raw == "" || raw == "never" || raw == "0" {
		tokenTTL = 0
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse LOOPD_TOKEN_TTL: %w", err)
	}
	tokenTTL = d
	return nil
}

// CreateToken signs a JWT with sub = userID.
func CreateToken(userID string) (string, error) {
	claims := jwt.MapClaims{"sub": userID}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// Authenticate verifies a token string and returns its subject userId.
func Authenticate(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return userID, nil
}
