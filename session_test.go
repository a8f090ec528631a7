package auth_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis/v3"
	auth "github.com/goliatone/go-storefront-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionApp(store fiber.Storage) *fiber.App {
	app := fiber.New()
	app.Use(auth.SessionMiddleware(auth.NewSessionStore(auth.SessionConfig{Storage: store}), auth.NopLogger{}))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(auth.ScopeFromFiber(c).SessionID)
	})
	return app
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	buf := new(strings.Builder)
	_, err := io.Copy(buf, resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func TestSessionMiddleware_IssuesAndKeepsSessionID(t *testing.T) {
	app := sessionApp(nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	first := readBody(t, resp)
	require.NotEmpty(t, first)

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Equal(t, first, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: cookie.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, first, readBody(t, resp))
}

func TestSessionMiddleware_RedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redisstorage.New(redisstorage.Config{URL: "redis://" + mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })

	app := sessionApp(store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	id := readBody(t, resp)
	require.NotEmpty(t, id)
	assert.True(t, mr.Exists(id), "session %s should be persisted in redis", id)

	// a fresh app sharing the storage still knows the session
	other := sessionApp(store)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: id})
	resp, err = other.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, readBody(t, resp))
	assert.Nil(t, sessionCookie(resp))
}
