package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/retry"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
)

// oidcUserinfo holds the claims we consume from the IdP userinfo endpoint
type oidcUserinfo struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
}

// IdPResolver authenticates against an external OAuth2/OIDC identity
// provider. The cookie carries the IdP token pair; on each request the
// access token is validated against the userinfo endpoint, and an expired
// access token is silently refreshed with the refresh token before the user
// notices.
type IdPResolver struct {
	store       *store.Store
	oauth       *oauth2.Config
	userinfoURL string
	client      *retry.Client
	timeout     time.Duration
}

// NewIdPResolver creates a resolver backed by an external identity provider.
func NewIdPResolver(s *store.Store, cfg *config.Config) *IdPResolver {
	return &IdPResolver{
		store: s,
		oauth: &oauth2.Config{
			ClientID:     cfg.IdPClientID,
			ClientSecret: cfg.IdPClientSecret,
			RedirectURL:  cfg.IdPRedirectURL,
			Scopes:       cfg.IdPScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.IdPAuthURL,
				TokenURL: cfg.IdPTokenURL,
			},
		},
		userinfoURL: cfg.IdPUserinfoURL,
		client: retry.NewClient(
			retry.WithMaxRetries(cfg.IdPMaxRetries),
			retry.WithInitialRetryDelay(cfg.IdPRetryDelay),
			retry.WithMaxRetryDelay(cfg.IdPMaxRetryDelay),
			retry.WithHTTPClient(&http.Client{Timeout: cfg.IdPTimeout}),
		),
		timeout: cfg.IdPTimeout,
	}
}

// Resolve validates the session's access token against the IdP and maps
// the IdP subject onto a local user row.
func (r *IdPResolver) Resolve(c *gin.Context) (*models.User, error) {
	sess := sessions.Default(c)

	token := r.tokenFromSession(sess)
	if token == nil {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), r.timeout)
	defer cancel()

	// TokenSource refreshes transparently when the access token is stale
	fresh, err := r.oauth.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, ErrSessionExpired
	}

	info, err := r.fetchUserinfo(ctx, fresh.AccessToken)
	if err != nil {
		return nil, err
	}

	if fresh.AccessToken != token.AccessToken {
		r.saveToken(sess, fresh)
		if err := sess.Save(); err != nil {
			log.Printf("[Identity] Failed to persist refreshed IdP token: %v", err)
		}
	}

	user, err := r.store.UpsertExternalUser(
		uuid.New().String(),
		info.Subject,
		info.PreferredUsername,
		info.Email,
		info.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to map IdP user: %w", err)
	}

	return user, nil
}

// Login exchanges credentials with the IdP token endpoint (resource owner
// password grant) and stores the token pair in the session cookie.
func (r *IdPResolver) Login(
	c *gin.Context,
	username, password string,
) (*models.User, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), r.timeout)
	defer cancel()

	token, err := r.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, ErrIdPRejected
		}
		return nil, fmt.Errorf("%w: %v", ErrIdPConnection, err)
	}

	info, err := r.fetchUserinfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	user, err := r.store.UpsertExternalUser(
		uuid.New().String(),
		info.Subject,
		info.PreferredUsername,
		info.Email,
		info.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to map IdP user: %w", err)
	}

	sess := sessions.Default(c)
	r.saveToken(sess, token)
	if err := sess.Save(); err != nil {
		return nil, fmt.Errorf("failed to save session cookie: %w", err)
	}

	return user, nil
}

// Logout clears the token pair from the cookie. The IdP session itself
// is out of scope here.
func (r *IdPResolver) Logout(c *gin.Context) error {
	sess := sessions.Default(c)
	sess.Clear()
	return sess.Save()
}

// Name returns the resolver name for logging
func (r *IdPResolver) Name() string {
	return "idp"
}

func (r *IdPResolver) fetchUserinfo(ctx context.Context, accessToken string) (*oidcUserinfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdPConnection, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdPConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrSessionExpired
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: userinfo returned %s", ErrIdPInvalidResp, resp.Status)
	}

	var info oidcUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdPInvalidResp, err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject", ErrIdPInvalidResp)
	}

	return &info, nil
}

func (r *IdPResolver) tokenFromSession(sess sessions.Session) *oauth2.Token {
	access, ok := sess.Get(sessionKeyAccessToken).(string)
	if !ok || access == "" {
		return nil
	}

	token := &oauth2.Token{AccessToken: access}
	if refresh, ok := sess.Get(sessionKeyRefreshToken).(string); ok {
		token.RefreshToken = refresh
	}
	if expiry, ok := sess.Get(sessionKeyExpiry).(int64); ok && expiry > 0 {
		token.Expiry = time.Unix(expiry, 0)
	}

	return token
}

func (r *IdPResolver) saveToken(sess sessions.Session, token *oauth2.Token) {
	sess.Set(sessionKeyAccessToken, token.AccessToken)
	sess.Set(sessionKeyRefreshToken, token.RefreshToken)
	sess.Set(sessionKeyExpiry, token.Expiry.Unix())
}
