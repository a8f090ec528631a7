package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClaims(t *testing.T) {
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"},
		UID:              "user123",
		UserRole:         string(RoleVendor),
	}

	tests := []struct {
		name   string
		ctx    context.Context
		wantOK bool
	}{
		{"present", WithClaimsContext(context.Background(), claims), true},
		{"absent", context.Background(), false},
		{"wrong type", context.WithValue(context.Background(), claimsCtxKey, "not-claims"), false},
		{"nil claims", WithClaimsContext(context.Background(), nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetClaims(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "user123", got.UserID())
			}
		})
	}
}

func TestScopeFromFiber(t *testing.T) {
	claims := &JWTClaims{UID: "user-9"}

	tests := []struct {
		name    string
		prepare func(*http.Request)
		locals  map[string]any
		want    RequestScope
	}{
		{
			name: "cookies only",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "refresh"})
				r.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "access-cookie"})
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-cookie"})
			},
			want: RequestScope{RefreshToken: "refresh", AccessToken: "access-cookie", SessionID: "sess-cookie"},
		},
		{
			name: "bearer header wins over cookie",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header-token")
				r.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "access-cookie"})
			},
			want: RequestScope{AccessToken: "header-token"},
		},
		{
			name:    "locals from middleware",
			prepare: func(r *http.Request) {},
			locals:  map[string]any{SessionLocalsKey: "sess-locals", ClaimsLocalsKey: claims},
			want:    RequestScope{SessionID: "sess-locals", SubjectID: "user-9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RequestScope
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				for k, v := range tt.locals {
					c.Locals(k, v)
				}
				got = ScopeFromFiber(c)
				return c.SendStatus(fiber.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			resp, err := app.Test(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range cases {
		var got string
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			got = BearerToken(c)
			return nil
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, got, "header %q", header)
	}
}
