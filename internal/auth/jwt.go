package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
)

// Principal kinds.
const (
	KindHQ     = "hq"
	KindDriver = "driver"
)

// Principal represents the authenticated caller from JWT.
type Principal struct {
	Name string // operator username or driver id
	Kind string // "hq" | "driver"
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

type claims struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for name/kind that expires after ttl (no expiry if ttl <= 0).
func IssueToken(secret, name, kind string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	c := claims{Name: name, Kind: strings.ToLower(kind)}
	c.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// ParseFromMD extracts and validates a Bearer JWT from gRPC metadata and returns a Principal.
func ParseFromMD(ctx context.Context, secret string) (*Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errors.New("missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return nil, errors.New("missing authorization")
	}
	parts := strings.SplitN(vals[0], " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.New("invalid authorization header")
	}
	return parseJWT(strings.TrimSpace(parts[1]), secret)
}

// parseJWT validates and extracts claims from a JWT token.
func parseJWT(tokenStr string, secret string) (*Principal, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.Name == "" || c.Kind == "" {
		return nil, errors.New("invalid claims")
	}
	return &Principal{Name: c.Name, Kind: strings.ToLower(c.Kind)}, nil
}
