package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the identity contained in a verified token.
type Claims struct {
	Sub      string
	Username string
	Email    string
	TokenUse string
}

// Identity is the value records are owned by: the pool username when present, else the subject.
func (c Claims) Identity() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Sub
}

var (
	errMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Verifier checks a bearer token and returns the identity it carries.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// cognitoClaims mirrors the claim set of Cognito id and access tokens.
type cognitoClaims struct {
	jwt.RegisteredClaims
	CognitoUsername string `json:"cognito:username,omitempty"`
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	TokenUse        string `json:"token_use,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
}

func (c *cognitoClaims) toClaims() Claims {
	username := c.CognitoUsername
	if username == "" {
		username = c.Username
	}
	return Claims{
		Sub:      c.Subject,
		Username: username,
		Email:    c.Email,
		TokenUse: c.TokenUse,
	}
}

// HMACVerifier verifies HS256 tokens signed with a shared secret. Dev and tests only.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier returns a verifier for tokens issued by SignDevToken.
func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(_ context.Context, token string) (Claims, error) {
	raw := &cognitoClaims{}
	parsed, err := jwt.ParseWithClaims(token, raw, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := raw.toClaims()
	if claims.Identity() == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// SignDevToken issues an HS256 token carrying the given identity, valid for ttl.
func SignDevToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errMissingSecret
	}
	if claims.Sub == "" && claims.Username == "" {
		return "", errors.New("sub or username is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now().UTC()
	tokenUse := claims.TokenUse
	if tokenUse == "" {
		tokenUse = "id"
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &cognitoClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		CognitoUsername: claims.Username,
		Email:           claims.Email,
		TokenUse:        tokenUse,
	})
	return token.SignedString([]byte(secret))
}
