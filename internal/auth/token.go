package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is the issuer of locally minted tokens.
const DefaultIssuer = "storefront"

// AccessTokenClaims are the claims of a locally minted access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// IssueToken creates an HS256 access token for subject, signed with secret.
// It is used in local mode, where there is no external identity provider.
func IssueToken(secret []byte, issuer, subject, email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		TokenUse: TokenUseAccess,
		Email:    email,
		Name:     name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
