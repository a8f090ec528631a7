// Package config loads the server settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

// Prefix is prepended to every variable name
const Prefix = "STOREFRONT_"

// Config holds everything the server binary needs
type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Addr string `env:"ADDR" envDefault:":8080"`

	SigningKey     string        `env:"SIGNING_KEY,required"`
	Issuer         string        `env:"ISSUER" envDefault:"storefront"`
	Audience       []string      `env:"AUDIENCE" envSeparator:","`
	AccessTTL      time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL     time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	AbsoluteTTL    time.Duration `env:"ABSOLUTE_TTL" envDefault:"720h"`
	RevokeOnRotate bool          `env:"REVOKE_ON_ROTATE" envDefault:"false"`
	UseHashIDs     bool          `env:"USE_HASH_IDS" envDefault:"false"`
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"10"`
	CookieSecure   bool          `env:"COOKIE_SECURE"`
	CookieDomain   string        `env:"COOKIE_DOMAIN"`
	FrontendURL    string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000/"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseDSN    string `env:"DATABASE_DSN,required"`
	RedisURL       string `env:"REDIS_URL"`

	S3 S3Config `envPrefix:"S3_"`

	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	Debug        bool   `env:"DEBUG"`
}

// S3Config configures the asset bucket
type S3Config struct {
	Bucket        string `env:"BUCKET"`
	Region        string `env:"REGION" envDefault:"us-east-1"`
	Endpoint      string `env:"ENDPOINT"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	PathStyle     bool   `env:"PATH_STYLE"`
}

// OAuthConfig holds the provider credentials. A provider without a client
// id is not registered.
type OAuthConfig struct {
	CallbackBaseURL    string        `env:"CALLBACK_BASE_URL" envDefault:"http://localhost:8080/api/v1/auth"`
	StateEncryptionKey string        `env:"STATE_ENCRYPTION_KEY"`
	StateHMACKey       string        `env:"STATE_HMAC_KEY"`
	StateTTL           time.Duration `env:"STATE_TTL" envDefault:"10m"`
	SuccessRedirect    string        `env:"SUCCESS_REDIRECT" envDefault:"/"`
	ErrorRedirect      string        `env:"ERROR_REDIRECT" envDefault:"/login?error=auth_failed"`

	GoogleClientID       string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `env:"GOOGLE_CLIENT_SECRET"`
	FacebookClientID     string `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string `env:"FACEBOOK_CLIENT_SECRET"`
	TwitterClientID      string `env:"TWITTER_CLIENT_ID"`
	TwitterClientSecret  string `env:"TWITTER_CLIENT_SECRET"`
}

// Load parses the process environment
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses vars instead of the process environment when vars is not nil
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: Prefix}
	if vars != nil {
		opts.Environment = vars
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values env tags cannot express
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.AccessTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshTTL, validation.Required, validation.Min(c.AccessTTL)),
		validation.Field(&c.AbsoluteTTL, validation.Required, validation.Min(c.RefreshTTL)),
		validation.Field(&c.BcryptCost, validation.Min(4), validation.Max(31)),
		validation.Field(&c.DatabaseDriver, validation.In("postgres", "pg", "pgx", "sqlite", "sqlite3")),
		validation.Field(&c.FrontendURL, validation.Required, is.URL),
		validation.Field(&c.RedisURL, is.RequestURI),
		validation.Field(&c.OAuth, validation.By(func(any) error { return c.OAuth.validate() })),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

func (o OAuthConfig) validate() error {
	if !o.anyProvider() {
		return nil
	}
	return validation.ValidateStruct(&o,
		validation.Field(&o.StateEncryptionKey, validation.Required, validation.By(aesKeyLength)),
		validation.Field(&o.StateHMACKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&o.CallbackBaseURL, validation.Required, is.URL),
	)
}

func (o OAuthConfig) anyProvider() bool {
	return o.GoogleClientID != "" || o.FacebookClientID != "" || o.TwitterClientID != ""
}

func aesKeyLength(value any) error {
	key, _ := value.(string)
	switch len(key) {
	case 16, 24, 32:
		return nil
	}
	return validation.NewError("validation_aes_key", "must be 16, 24 or 32 bytes long")
}

// IsProduction reports whether Env names a production deployment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Audience
}

func (c *Config) GetTokenTTLs() (access, refresh, absolute time.Duration) {
	return c.AccessTTL, c.RefreshTTL, c.AbsoluteTTL
}

// GetCookieSecure is forced on in production
func (c *Config) GetCookieSecure() bool {
	return c.CookieSecure || c.IsProduction()
}

// GetCallbackURL returns the redirect URI registered with provider
func (c *Config) GetCallbackURL(provider string) string {
	return strings.TrimSuffix(c.OAuth.CallbackBaseURL, "/") + "/" + provider + "/callback"
}
