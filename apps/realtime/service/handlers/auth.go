package handlers

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatmail/service-realtime/apps/realtime/service"
)

// CredentialVerifier turns a bearer token into a profile ID.
type CredentialVerifier interface {
	Verify(token string) (string, error)
}

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier verifies HS256 tokens whose subject carries the
// profile ID.
func NewJWTVerifier(secret string) CredentialVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", service.ErrCredentialRequired
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", service.ErrCredentialInvalid
	}

	if claims.Subject == "" {
		return "", service.ErrCredentialInvalid
	}
	return claims.Subject, nil
}
