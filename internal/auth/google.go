package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"writer-backend/internal/shared/server/respond"
	"writer-backend/internal/shared/telemetry"
	"writer-backend/internal/users"
)

const (
	userInfoURL    = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateKeyPrefix = "oauth-state:"
	defaultState   = 5 * time.Minute
)

// Accounts finds or creates the account behind a Google identity.
type Accounts interface {
	SignInWithGoogle(ctx context.Context, googleSub, email, name string) (users.User, error)
}

// StateStore keeps OAuth state values between start and callback. Any
// instance may serve the callback, so production uses the shared session
// store.
type StateStore interface {
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// GoogleConfig holds the OAuth client settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// UIRedirectURL receives the issued token as ?token=.
	UIRedirectURL string
	StateTTL      time.Duration
}

// GoogleService runs the Google authorization code flow and issues a session
// token for the linked account.
type GoogleService struct {
	oauthConfig *oauth2.Config
	accounts    Accounts
	tokens      users.TokenIssuer
	states      StateStore
	uiRedirect  string
	stateTTL    time.Duration
	userInfo    func(ctx context.Context, token *oauth2.Token) (googleUserInfo, error)
}

func NewGoogleService(cfg GoogleConfig, accounts Accounts, tokens users.TokenIssuer, states StateStore) *GoogleService {
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = defaultState
	}
	s := &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		accounts:   accounts,
		tokens:     tokens,
		states:     states,
		uiRedirect: cfg.UIRedirectURL,
		stateTTL:   ttl,
	}
	s.userInfo = s.fetchUserInfo
	return s
}

// RegisterRoutes attaches the public Google auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" &&
		s.oauthConfig.RedirectURL != "" && s.states != nil
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google sign-in is not configured", nil)
		return
	}

	state := uuid.NewString()
	if err := s.states.Put(c.Request.Context(), stateKeyPrefix+state, []byte("1"), s.stateTTL); err != nil {
		telemetry.Error("auth.google_state_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start sign-in", nil)
		return
	}
	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *GoogleService) callback(c *gin.Context) {
	state := strings.TrimSpace(c.Query("state"))
	code := strings.TrimSpace(c.Query("code"))
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "bad_request", "missing state or code", nil)
		return
	}

	ctx := c.Request.Context()
	if !s.consumeState(ctx, state) {
		respond.Error(c, http.StatusBadRequest, "bad_request", "invalid or expired state", nil)
		return
	}

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		telemetry.Warn("auth.google_exchange_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadRequest, "bad_request", "failed to exchange code", nil)
		return
	}

	info, err := s.userInfo(ctx, token)
	if err != nil || info.Sub == "" {
		telemetry.Warn("auth.google_profile_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadGateway, "auth_error", "failed to fetch Google profile", nil)
		return
	}

	user, err := s.accounts.SignInWithGoogle(ctx, info.Sub, info.Email, info.Name)
	if err != nil {
		telemetry.Error("auth.google_signin_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign in", nil)
		return
	}

	jwt, err := s.tokens.Sign(user.ID, user.Email, user.Name, string(user.Role))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	target, err := withToken(s.uiRedirect, jwt)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	telemetry.Info("auth.google_signin", map[string]any{"user_id": user.ID})
	c.Redirect(http.StatusFound, target)
}

// consumeState accepts a state exactly once.
func (s *GoogleService) consumeState(ctx context.Context, state string) bool {
	key := stateKeyPrefix + state
	if _, err := s.states.Get(ctx, key); err != nil {
		return false
	}
	if err := s.states.Delete(ctx, key); err != nil {
		telemetry.Warn("auth.google_state_delete_failed", map[string]any{"error": err})
	}
	return true
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	resp, err := s.oauthConfig.Client(ctx, token).Get(userInfoURL)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}
	// The v2 endpoint reports the subject as "id".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	return info, nil
}

func withToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("UI redirect url required")
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
