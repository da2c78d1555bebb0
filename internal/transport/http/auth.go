package http

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session-token fields this service consumes. Token issuance
// belongs to the auth subsystem; only verification happens here.
type Claims struct {
	UserID      string
	DisplayName string
	Role        string
}

var errMissingSubject = errors.New("token has no subject")

// ParseToken verifies an HMAC-signed session token and extracts the
// participant identity.
func ParseToken(secret []byte, token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token claims")
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return Claims{}, errMissingSubject
	}
	name, _ := mapClaims["name"].(string)
	role, _ := mapClaims["role"].(string)
	if role == "" {
		role = "attendee"
	}

	return Claims{UserID: sub, DisplayName: name, Role: role}, nil
}
