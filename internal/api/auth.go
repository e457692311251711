package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"keystone-tracker/internal/cache"
	"keystone-tracker/internal/domain"
)

// TokenSource acquires and caches one OAuth2 client-credentials token.
// The cached TTL is a configured fraction of the provider-declared
// expiry so a token is always refreshed well before it dies. No retry
// happens here; a failed exchange fails the dependent fetch.
type TokenSource struct {
	service      string
	tokenURL     string
	clientID     string
	clientSecret string
	ttlPercent   int
	cache        cache.Cache
	client       *fasthttp.Client
	logger       zerolog.Logger
}

func NewTokenSource(service, tokenURL, clientID, clientSecret string, ttlPercent int, c cache.Cache, client *fasthttp.Client, logger zerolog.Logger) *TokenSource {
	return &TokenSource{
		service:      service,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		ttlPercent:   ttlPercent,
		cache:        c,
		client:       client,
		logger:       logger,
	}
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns the cached token when present and performs the
// client-credentials exchange otherwise.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	key := "auth:" + t.service

	cached, ok, err := t.cache.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read token cache: %w", err)
	}
	if ok {
		return cached, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	basic := base64.StdEncoding.EncodeToString([]byte(t.clientID + ":" + t.clientSecret))

	req.SetRequestURI(t.tokenURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString("grant_type=client_credentials")

	if err := do(ctx, t.client, req, resp); err != nil {
		return "", &domain.AuthError{Service: t.service, Reason: err.Error()}
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", &domain.AuthError{Service: t.service, Status: resp.StatusCode(), Reason: "token exchange rejected"}
	}

	var auth authResponse
	if err := json.Unmarshal(resp.Body(), &auth); err != nil {
		return "", &domain.AuthError{Service: t.service, Reason: "unparseable token response"}
	}
	if auth.AccessToken == "" || auth.ExpiresIn <= 0 {
		return "", &domain.AuthError{Service: t.service, Reason: "token response missing access_token or expires_in"}
	}

	ttl := time.Duration(auth.ExpiresIn) * time.Second * time.Duration(t.ttlPercent) / 100
	if err := t.cache.Set(ctx, key, auth.AccessToken, ttl); err != nil {
		t.logger.Warn().Err(err).Str("service", t.service).Msg("failed to cache token")
	}

	t.logger.Debug().Str("service", t.service).Dur("ttl", ttl).Msg("token acquired")
	return auth.AccessToken, nil
}
