package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/storefront/internal/models"
)

func TestPrincipalContext(t *testing.T) {
	require.Nil(t, PrincipalFromContext(context.Background()))

	principal := &models.Principal{PrincipalID: uuid.New(), Subject: "user-1"}
	ctx := WithPrincipal(context.Background(), principal)
	require.Same(t, principal, PrincipalFromContext(ctx))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing", header: "", want: ""},
		{name: "bearer", header: "Bearer abc.def", want: "abc.def"},
		{name: "lowercase scheme", header: "bearer abc.def", want: "abc.def"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "no token", header: "Bearer", want: ""},
		{name: "extra parts", header: "Bearer a b", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			require.Equal(t, tt.want, BearerToken(req))
		})
	}
}
