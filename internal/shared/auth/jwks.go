package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"speech-backend/internal/shared/telemetry"
)

// JWKSOptions configures a verifier backed by a remote key set.
type JWKSOptions struct {
	URL             string
	Issuer          string
	ClientID        string
	HTTPClient      *http.Client
	RefreshInterval time.Duration
	Leeway          time.Duration
}

// JWKSVerifier verifies RS256 tokens issued by a Cognito user pool.
type JWKSVerifier struct {
	jwks     keyfunc.Keyfunc
	issuer   string
	clientID string
	leeway   time.Duration
}

// NewJWKSVerifier builds a verifier whose keys refresh in the background.
// Startup does not fail when the key set is briefly unreachable.
func NewJWKSVerifier(opts JWKSOptions) (*JWKSVerifier, error) {
	if opts.URL == "" {
		return nil, errors.New("jwks url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = time.Hour
	}

	storage, err := jwkset.NewStorageFromHTTP(opts.URL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			telemetry.Error("auth.jwks_refresh_failed", map[string]any{
				"url":   opts.URL,
				"error": err.Error(),
			})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return &JWKSVerifier{
		jwks:     k,
		issuer:   opts.Issuer,
		clientID: opts.ClientID,
		leeway:   opts.Leeway,
	}, nil
}

// Verify implements Verifier.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	raw := &cognitoClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, raw, v.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := v.checkAudience(raw); err != nil {
		return Claims{}, err
	}

	claims := raw.toClaims()
	if claims.Identity() == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// checkAudience matches aud for id tokens and client_id for access tokens.
func (v *JWKSVerifier) checkAudience(raw *cognitoClaims) error {
	switch raw.TokenUse {
	case "id":
		if v.clientID == "" {
			return nil
		}
		for _, aud := range raw.Audience {
			if aud == v.clientID {
				return nil
			}
		}
		return fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	case "access":
		if v.clientID != "" && raw.ClientID != v.clientID {
			return fmt.Errorf("%w: client mismatch", ErrInvalidToken)
		}
		return nil
	default:
		return fmt.Errorf("%w: unexpected token_use %q", ErrInvalidToken, raw.TokenUse)
	}
}
