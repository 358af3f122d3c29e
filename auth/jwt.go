package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Caller is the authenticated principal behind a request.
type Caller struct {
	UID   string
	Email string
	Admin bool
}

// IsAdmin is safe on a nil caller.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Admin
}

// System is the caller used by CLI imports and exports.
var System = &Caller{UID: "system", Admin: true}

// Claims represents the JWT claims for caller tokens
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 caller tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewTokenService(signingKey, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue signs a token for caller.
func (s *TokenService) Issue(caller Caller) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UID:   caller.UID,
		Email: caller.Email,
		Admin: caller.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Verify parses tokenString and returns its caller.
func (s *TokenService) Verify(tokenString string) (*Caller, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UID == "" {
		return nil, ErrInvalidToken
	}
	return &Caller{UID: claims.UID, Email: claims.Email, Admin: claims.Admin}, nil
}
