// Package identity resolves bearer tokens to a caller. Token issuance
// belongs to the external user service; this package only verifies.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/soluret/seatbook/internal/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// Verifier resolves an opaque caller token to an identity.
type Verifier interface {
	Verify(token string) (*domain.Identity, error)
}

// JWTVerifier validates HS256 tokens carrying `sub` (user id) and `role`
// claims, the format the user service issues.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (*domain.Identity, error) {
	const op = "identity.JWTVerifier.Verify"

	tok, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	userID, ok := subjectID(claims["sub"])
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrUnauthorized)
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = string(domain.RoleUser)
	}

	return &domain.Identity{UserID: userID, Role: domain.Role(role)}, nil
}

// subjectID accepts the numeric forms JSON decoding may produce.
func subjectID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Sign issues an HS256 token for a user. Used by tests and local tooling;
// production tokens come from the user service.
func Sign(secret string, userID int64, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
