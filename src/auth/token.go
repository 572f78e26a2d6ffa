package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the principal carried by a verified token. It lives for one
// request and is never stored.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type Claims struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret     []byte
	cookieName string
	parser     *jwt.Parser
}

func NewVerifier(secret, cookieName string) *Verifier {
	return &Verifier{
		secret:     []byte(secret),
		cookieName: cookieName,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// Verify extracts the token from the request and validates it. It never
// fails loudly: a missing, malformed or expired token yields false.
func (v *Verifier) Verify(r *http.Request) (*Identity, bool) {
	token := v.extractToken(r)
	if token == "" {
		return nil, false
	}
	claims, err := v.ParseAndValidate(token)
	if err != nil {
		return nil, false
	}
	return &Identity{ID: claims.ID, Email: claims.Email, Username: claims.Username}, true
}

func (v *Verifier) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (v *Verifier) extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if v.cookieName != "" {
		if cookie, err := r.Cookie(v.cookieName); err == nil {
			return cookie.Value
		}
	}
	return ""
}

// Issuer signs tokens with the same secret the Verifier checks.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

func (i *Issuer) Issue(identity Identity) (string, error) {
	now := i.now()
	claims := Claims{
		ID:       identity.ID,
		Email:    identity.Email,
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
