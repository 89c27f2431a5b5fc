package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfeidau/storefront/internal/auth"
)

// TokenCmd mints an access token accepted by a server running in local auth mode.
type TokenCmd struct {
	Subject    string        `help:"Subject identifier" required:""`
	Email      string        `help:"Email claim"`
	Name       string        `help:"Name claim"`
	Issuer     string        `help:"Token issuer" default:"storefront" env:"STOREFRONT_AUTH_ISSUER"`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"HS256 signing key" required:"" env:"STOREFRONT_AUTH_LOCAL_SECRET"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	token, err := auth.IssueToken([]byte(t.SigningKey), t.Issuer, t.Subject, strings.ToLower(t.Email), t.Name, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
