// Package identity issues stable anonymous identifiers. Acquiring an identity
// is a precondition of matchmaking, and a failure here is fatal to the whole
// session rather than retried automatically.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 24 * time.Hour

// a minted anonymous identity and its bearer token
type Identity struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// JWT claims carried by an anonymous identity token
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// mints and verifies anonymous identity tokens
type Provider struct {
	secret []byte
}

// creates a provider with the given HS256 secret
func NewProvider(secret string) (*Provider, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity secret must not be empty")
	}

	return &Provider{secret: []byte(secret)}, nil
}

// mints a fresh anonymous identity with a random stable identifier
func (p *Provider) Issue() (Identity, error) {
	userID, err := generateUserID()
	if err != nil {
		return Identity{}, err
	}

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to sign identity token: %w", err)
	}

	return Identity{UserID: userID, Token: token}, nil
}

// validates a token and returns the stable user identifier it names
func (p *Provider) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid identity token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("invalid identity token claims")
	}

	return claims.UserID, nil
}

// generates a cryptographically random user identifier
func generateUserID() (string, error) {
	bytes := make([]byte, 16)

	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate user id: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}
