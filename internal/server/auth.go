package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidLogin = errors.New("incorrect username or password")
	ErrInvalidToken = errors.New("could not validate credentials")
)

// Claims are carried by access tokens. Subject is the user name.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator checks passwords against bcrypt hashes and issues HS256 tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string
	now    func() time.Time
}

// NewAuthenticator requires a signing secret. users maps names to bcrypt hashes.
func NewAuthenticator(secret string, ttl time.Duration, users map[string]string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("a JWT signing secret is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, users: users, now: time.Now}, nil
}

// Login verifies the password and returns a signed token with its expiry.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	hash, ok := a.users[username]
	if !ok {
		return "", time.Time{}, ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidLogin
	}

	now := a.now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses and validates a token and returns its claims.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := a.users[claims.Subject]; !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserKey is the gin context key holding the authenticated user name.
const UserKey = "user"

// RequireAuth rejects requests without a valid bearer token.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			unauthorized(c, ErrInvalidToken)
			return
		}
		claims, err := a.Verify(strings.TrimSpace(token))
		if err != nil {
			unauthorized(c, err)
			return
		}
		c.Set(UserKey, claims.Subject)
		c.Next()
	}
}
