package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

// DefaultSessionExpiration is how long an idle anonymous session lives
const DefaultSessionExpiration = 30 * 24 * time.Hour

// SessionConfig configures the anonymous shopper session. A nil Storage
// keeps sessions in process memory.
type SessionConfig struct {
	Storage    fiber.Storage
	Secure     bool
	Expiration time.Duration
}

// NewSessionStore creates the session store behind the session_id cookie
func NewSessionStore(cfg SessionConfig) *session.Store {
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultSessionExpiration
	}
	return session.New(session.Config{
		Storage:        cfg.Storage,
		Expiration:     cfg.Expiration,
		KeyLookup:      "cookie:" + SessionCookieName,
		KeyGenerator:   uuid.NewString,
		CookiePath:     "/",
		CookieSecure:   cfg.Secure,
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	})
}

// SessionMiddleware makes sure every request carries a session id and
// exposes it under SessionLocalsKey. Carts are keyed by this id until the
// shopper logs in.
func SessionMiddleware(store *session.Store, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defLogger{}
	}
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			logger.Error("session lookup failed: %v", err)
			return c.Next()
		}

		c.Locals(SessionLocalsKey, sess.ID())

		if sess.Fresh() {
			sess.Set("created_at", time.Now().Unix())
			if err := sess.Save(); err != nil {
				logger.Error("session save failed: %v", err)
			}
		}

		return c.Next()
	}
}
