package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTIssuer(secret string, issuer string) *JWTIssuer {
	return &JWTIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

type accessClaims struct {
	AccountID string `json:"uid"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	AccountID  string
	Role       domain.Role
	SessionRef string
	ExpiresAt  time.Time
}

func (s *JWTIssuer) IssueAccessToken(accountID string, role domain.Role, sessionRef string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := accessClaims{
		AccountID: accountID,
		Role:      string(role),
		SessionID: sessionRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry.
// The session reference still has to be resolved against the session store.
func (s *JWTIssuer) ParseAccessToken(token string) (AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AccessClaims{}, domain.ErrTokenExpired()
		}
		return AccessClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid || claims.AccountID == "" || !domain.Role(claims.Role).Valid() {
		return AccessClaims{}, domain.ErrTokenInvalid()
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return AccessClaims{
		AccountID:  claims.AccountID,
		Role:       domain.Role(claims.Role),
		SessionRef: claims.SessionID,
		ExpiresAt:  exp,
	}, nil
}
