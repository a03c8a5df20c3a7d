package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"

	sharedauth "speech-backend/internal/shared/auth"
	"speech-backend/internal/shared/server/respond"
	"speech-backend/internal/shared/telemetry"
)

const (
	defaultStateTTL      = 5 * time.Minute
	defaultStateCapacity = 4096
)

// CognitoOptions configures the hosted-UI sign-in flow.
type CognitoOptions struct {
	// Domain is the user pool domain, with or without scheme.
	Domain       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	LogoutURL    string
	UIRedirect   string
	StateTTL     time.Duration
}

// CognitoService handles the Cognito hosted-UI authorization code flow.
// The id_token returned by the pool is verified and handed to the UI as-is.
type CognitoService struct {
	oauthConfig *oauth2.Config
	domain      string
	logoutURL   string
	uiRedirect  string
	verifier    sharedauth.Verifier
	states      *expirable.LRU[string, struct{}]
}

// NewCognitoService builds a CognitoService.
func NewCognitoService(opts CognitoOptions, verifier sharedauth.Verifier) *CognitoService {
	domain := normalizeDomain(opts.Domain)
	ttl := opts.StateTTL
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &CognitoService{
		oauthConfig: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  domain + "/oauth2/authorize",
				TokenURL: domain + "/oauth2/token",
			},
		},
		domain:     domain,
		logoutURL:  opts.LogoutURL,
		uiRedirect: opts.UIRedirect,
		verifier:   verifier,
		states:     expirable.NewLRU[string, struct{}](defaultStateCapacity, nil, ttl),
	}
}

// RegisterRoutes attaches Cognito auth routes.
func (s *CognitoService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/cognito/start", s.start)
	rg.GET("/auth/cognito/callback", s.callback)
	rg.GET("/auth/cognito/logout", s.logout)
}

func (s *CognitoService) configured() bool {
	return s.domain != "" && s.oauthConfig.ClientID != "" && s.oauthConfig.RedirectURL != ""
}

func (s *CognitoService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Cognito auth not configured", nil)
		return
	}

	state := uuid.NewString()
	s.states.Add(state, struct{}{})

	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *CognitoService) callback(c *gin.Context) {
	if !s.configured() || s.verifier == nil {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Cognito auth not configured", nil)
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	if !s.consumeState(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		telemetry.Warn("auth.cognito.exchange_failed", map[string]any{
			"error":      err.Error(),
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "token response missing id_token", nil)
		return
	}
	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "invalid id_token", nil)
		return
	}

	redirectURL, err := appendToken(s.uiRedirect, idToken)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}

	telemetry.Info("auth.cognito.signed_in", map[string]any{
		"user_id":    claims.Identity(),
		"request_id": c.GetString("requestId"),
	})
	c.Redirect(http.StatusFound, redirectURL)
}

func (s *CognitoService) logout(c *gin.Context) {
	if s.domain == "" || s.oauthConfig.ClientID == "" {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Cognito auth not configured", nil)
		return
	}
	q := url.Values{}
	q.Set("client_id", s.oauthConfig.ClientID)
	if s.logoutURL != "" {
		q.Set("logout_uri", s.logoutURL)
	}
	c.Redirect(http.StatusFound, s.domain+"/logout?"+q.Encode())
}

// consumeState accepts each issued state once, before it expires.
func (s *CognitoService) consumeState(state string) bool {
	_, live := s.states.Peek(state)
	removed := s.states.Remove(state)
	return live && removed
}

func normalizeDomain(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if domain == "" {
		return ""
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
