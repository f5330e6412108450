package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// restoreClaims is the signed payload of a restore token. The client treats
// the token as opaque; only the server can mint or verify one.
type restoreClaims struct {
	SessionID          string `json:"sid"`
	ImpersonatedUserID *int64 `json:"imp,omitempty"`
	jwt.RegisteredClaims
}

type JWTRestoreTokenGenerator struct {
	secret []byte
	ttl    time.Duration
	nowFn  func() time.Time
}

func NewJWTRestoreTokenGenerator(secret string, ttl time.Duration) *JWTRestoreTokenGenerator {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTRestoreTokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		nowFn:  time.Now,
	}
}

func (g *JWTRestoreTokenGenerator) Generate(sessionID string, originalUserID int64, impersonatedUserID *int64) (string, error) {
	now := g.nowFn().UTC()
	claims := &restoreClaims{
		SessionID:          sessionID,
		ImpersonatedUserID: impersonatedUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", originalUserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

func (g *JWTRestoreTokenGenerator) Validate(tokenString string) (*RestoreClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &restoreClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*restoreClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid restore token claims")
	}

	var originalUserID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &originalUserID); err != nil {
		return nil, fmt.Errorf("invalid subject in restore token: %w", err)
	}

	return &RestoreClaims{
		SessionID:          claims.SessionID,
		OriginalUserID:     originalUserID,
		ImpersonatedUserID: claims.ImpersonatedUserID,
	}, nil
}
