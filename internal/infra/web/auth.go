package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Member session (JWT) =====

var errNoSession = errors.New("missing token")

// AuthManager reads the member session issued by the main site. The token is
// an HS256 JWT carrying the member's user_id, sent as a cookie or a bearer header.
type AuthManager struct {
	secret     []byte
	cookieName string
}

func NewAuthManager(secret, cookieName string) *AuthManager {
	if cookieName == "" {
		cookieName = "bds_token"
	}
	return &AuthManager{secret: []byte(secret), cookieName: cookieName}
}

type MemberClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Mint signs a session for userID. The site normally issues these; the
// service only mints them for tooling and tests.
func (a *AuthManager) Mint(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := MemberClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*MemberClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return a.parse(c.Value)
	}
	return nil, errNoSession
}

func (a *AuthManager) parse(tok string) (*MemberClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("session secret is not configured")
	}
	claims := &MemberClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

type memberKey struct{}

func withMember(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, memberKey{}, userID)
}

// MemberID returns the authenticated member's id, or "" for anonymous requests.
func MemberID(ctx context.Context) string {
	v, _ := ctx.Value(memberKey{}).(string)
	return v
}
