// Package auth provides cached Entra ID client-credentials tokens for the
// Azure OpenAI deployments and the Bot Framework connector.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

// Token scopes for the two downstream services.
const (
	ScopeCognitive    = "https://cognitiveservices.azure.com/.default"
	ScopeBotFramework = "https://api.botframework.com/.default"
)

// Tokens are treated as expired this long before their real expiry so an
// in-flight request never crosses the boundary with a stale credential.
const expirySkew = 60 * time.Second

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// TokenProvider caches one bearer token per instance and refreshes it
// synchronously from whichever caller first finds it stale. Concurrent
// refreshes are tolerated; each just replaces the cache with a fresher value.
type TokenProvider struct {
	cc *clientcredentials.Config

	mu     sync.Mutex
	cached *cachedToken
}

// NewTokenProvider creates a provider for the tenant in cfg and the given scope.
func NewTokenProvider(cfg config.EntraConfig, scope string) *TokenProvider {
	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	return NewTokenProviderWithURL(cfg.AppID, cfg.AppSecret, tokenURL, scope)
}

// NewTokenProviderWithURL creates a provider against an explicit token endpoint.
func NewTokenProviderWithURL(clientID, clientSecret, tokenURL, scope string) *TokenProvider {
	return &TokenProvider{
		cc: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{scope},
		},
	}
}

// Token returns a bearer token, refreshing it when the cached one is within
// the expiry skew. The exchange happens outside the lock so other callers are
// not blocked behind a slow token endpoint.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	now := time.Now()

	p.mu.Lock()
	cached := p.cached
	p.mu.Unlock()

	if cached != nil && cached.expiresAt.Add(-expirySkew).After(now) {
		return cached.accessToken, nil
	}

	tok, err := p.cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire Entra ID token: %w", err)
	}

	p.mu.Lock()
	p.cached = &cachedToken{accessToken: tok.AccessToken, expiresAt: tok.Expiry}
	p.mu.Unlock()

	return tok.AccessToken, nil
}
