package taskservice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/inkotake/ojoagent/internal/db"
	"github.com/inkotake/ojoagent/internal/models"
)

// ConfigAuthenticator satisfies pipeline.Authenticator over
// internal/db.ConfigStore: the actual judge-specific login flow (cookie
// capture, CSRF handshake, OAuth) is out of scope for this spec (§1 "the
// design assumes... a caller" for everything judge-HTML-shaped), so this
// mints an AuthCacheEntry directly from the user's stored, decrypted
// session token/cookie rather than performing a live login POST.
// Operators populate user_adapter_configs with a pre-captured session
// (e.g. via the out-of-scope settings UI); this type is what turns that
// stored credential into the in-memory cache entry the Runner consumes.
type ConfigAuthenticator struct {
	Configs *db.ConfigStore
}

func (a *ConfigAuthenticator) Authenticate(ctx context.Context, userID int64, adapterName string) (models.AuthCacheEntry, error) {
	_, token, err := a.Configs.GetAdapterConfig(ctx, userID, adapterName)
	if err != nil {
		return models.AuthCacheEntry{}, fmt.Errorf("look up %q session for user %d: %w", adapterName, userID, err)
	}
	if token == "" {
		return models.AuthCacheEntry{}, fmt.Errorf("no stored session for user %d on adapter %q", userID, adapterName)
	}
	return models.AuthCacheEntry{
		Token:       token,
		HTTPSession: &http.Client{Timeout: 30 * time.Second},
		CreatedAt:   time.Now(),
	}, nil
}
