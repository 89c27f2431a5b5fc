package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/auth"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// RefreshCookieName is the cookie holding the identity provider refresh token.
const RefreshCookieName = "refresh_token"

// DefaultLocalTokenTTL is the lifetime of access tokens minted in local mode.
const DefaultLocalTokenTTL = time.Hour

// RefreshConfig configures POST /v1/auth/refresh.
type RefreshConfig struct {
	Mode string // auth.ModeJWKS or auth.ModeLocal

	// jwks mode: refresh tokens are exchanged at the provider's token endpoint
	TokenURL   string
	ClientID   string
	HTTPClient *http.Client

	// local mode: a fresh token is minted for the caller
	LocalSecret string
	Issuer      string
	TokenTTL    time.Duration
}

type refresher struct {
	cfg    RefreshConfig
	oauth2 *oauth2.Config
}

func newRefresher(cfg RefreshConfig) *refresher {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultLocalTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = auth.DefaultIssuer
	}

	r := &refresher{cfg: cfg}
	if cfg.TokenURL != "" {
		r.oauth2 = &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	}
	return r
}

// exchange trades a refresh token for a new access token.
func (r *refresher) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if r.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.cfg.HTTPClient)
	}

	tok, err := r.oauth2.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return tok, nil
}

func (s *Server) handleMe(ctx context.Context, tx store.Tx, r *http.Request, principal *models.Principal) (int, any, error) {
	// only the principal's own memberships are visible until a tenant is bound
	if err := tx.SetPrincipal(ctx, principal.PrincipalID); err != nil {
		return 0, nil, fmt.Errorf("failed to bind principal: %w", err)
	}

	memberships, err := tx.Memberships().ListForPrincipal(ctx, principal.PrincipalID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	resp := meResponse{
		Principal:   newPrincipalResponse(principal),
		Memberships: make([]membershipResponse, 0, len(memberships)),
	}
	for _, m := range memberships {
		resp.Memberships = append(resp.Memberships, newMembershipResponse(m))
	}

	return http.StatusOK, resp, nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh.cfg.Mode == auth.ModeLocal {
		s.authenticated(s.refreshLocal).ServeHTTP(w, r)
		return
	}

	if s.refresh.oauth2 == nil {
		writeProblem(w, r, apperr.NotFound("token refresh is not configured"))
		return
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeProblem(w, r, apperr.Unauthorized("refresh token missing"))
		return
	}

	tok, err := s.refresh.exchange(r.Context(), cookie.Value)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Token refresh rejected")
		writeProblem(w, r, apperr.Unauthorized("refresh token rejected"))
		return
	}

	resp := tokenResponse{AccessToken: tok.AccessToken, TokenType: "Bearer"}
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = int(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refreshLocal(ctx context.Context, tx store.Tx, r *http.Request, principal *models.Principal) (int, any, error) {
	cfg := s.refresh.cfg

	token, err := auth.IssueToken([]byte(cfg.LocalSecret), cfg.Issuer, principal.Subject, principal.Email, principal.Name, cfg.TokenTTL)
	if err != nil {
		return 0, nil, err
	}

	return http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(cfg.TokenTTL.Seconds()),
	}, nil
}
