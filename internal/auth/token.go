package auth

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stash-go/internal/stash"
)

// ErrInvalidToken is returned for tokens that are malformed, expired, revoked or
// signed with another key.
var ErrInvalidToken = errors.New("invalid or expired session token")

const issuer = "stash"

// Claims is the payload of a session token.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session is the verified identity carried by a token.
type Session struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 session tokens. Revoked token ids are kept
// in memory until the token would have expired anyway.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  stash.Clock
	ids    stash.IDGenerator

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewTokenIssuer creates an issuer. clock and ids may be nil to use the real
// clock and random UUID token ids.
func NewTokenIssuer(secret string, ttl time.Duration, clock stash.Clock, ids stash.IDGenerator) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if clock == nil {
		clock = stash.RealClock{}
	}
	if ids == nil {
		ids = stash.UUIDGenerator{}
	}
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		clock:   clock,
		ids:     ids,
		revoked: make(map[string]time.Time),
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a signed token for user.
func (i *TokenIssuer) Issue(user *stash.User) (string, *Session, error) {
	now := i.clock.Now()
	session := &Session{
		UserID:    user.ID,
		Username:  user.Username,
		TokenID:   i.ids.New(),
		ExpiresAt: now.Add(i.ttl),
	}

	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Issuer:    issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, session, nil
}

// Verify parses tokenString and returns its session.
func (i *TokenIssuer) Verify(tokenString string) (*Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID <= 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	if i.isRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}

	return &Session{
		UserID:    claims.UserID,
		Username:  claims.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates a verified session until it expires.
func (i *TokenIssuer) Revoke(session *Session) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.clock.Now()
	for id, exp := range i.revoked {
		if !exp.After(now) {
			delete(i.revoked, id)
		}
	}
	i.revoked[session.TokenID] = session.ExpiresAt
}

func (i *TokenIssuer) isRevoked(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, ok := i.revoked[id]
	return ok
}
