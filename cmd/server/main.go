package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	redisstorage "github.com/gofiber/storage/redis/v3"
	"github.com/goliatone/go-print"
	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/activitymap"
	"github.com/goliatone/go-storefront-auth/assets"
	"github.com/goliatone/go-storefront-auth/cart"
	"github.com/goliatone/go-storefront-auth/config"
	"github.com/goliatone/go-storefront-auth/migrations"
	"github.com/goliatone/go-storefront-auth/revocation"
	"github.com/goliatone/go-storefront-auth/social"
	"github.com/goliatone/go-storefront-auth/social/providers/facebook"
	"github.com/goliatone/go-storefront-auth/social/providers/google"
	"github.com/goliatone/go-storefront-auth/social/providers/twitter"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "storefront-auth"
	shutdownTimeout = 15 * time.Second
)

type App struct {
	cfg      *config.Config
	logger   auth.Logger
	db       *bun.DB
	service  *auth.Service
	app      *fiber.App
	closers  []func() error
	shutdown []func(context.Context) error
}

func main() {
	log := auth.DefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config: %v", err)
		os.Exit(1)
	}

	if cfg.Debug {
		log.Debug("config %s", print.MaybePrettyJSON(redactedConfig(cfg)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log auth.Logger) error {
	a := &App{cfg: cfg, logger: log}
	defer a.close()

	if err := a.setupTracing(ctx); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	if err := a.setup(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening on %s", cfg.Addr)
		return a.app.Listen(cfg.Addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := a.app.ShutdownWithContext(sctx)
		// in-flight cart merges finish before the database closes
		a.service.Drain()
		return err
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (a *App) setup(ctx context.Context) error {
	cfg := a.cfg

	db, err := migrations.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	revocations, sessionStorage, err := a.setupRedis()
	if err != nil {
		return err
	}

	access, refresh, absolute := cfg.GetTokenTTLs()
	tokens := auth.NewTokenService([]byte(cfg.GetSigningKey()),
		auth.WithTokenTTLs(access, refresh, absolute),
		auth.WithIssuer(cfg.GetIssuer()),
		auth.WithAudience(cfg.GetAudience()...),
		auth.WithTokenLogger(a.logger),
	)

	providers := a.providers()

	opts := []auth.ServiceOption{
		auth.WithServiceLogger(a.logger),
		auth.WithPasswordHasher(auth.NewBcryptHasher(bcryptCost(cfg.BcryptCost))),
		auth.WithMailer(auth.ConsoleMailer{Logger: a.logger}),
		auth.WithCartReconciler(cart.NewReconciler(db)),
		auth.WithFrontendURL(cfg.FrontendURL),
		auth.WithRevokeOnRotate(cfg.RevokeOnRotate),
		auth.WithHashIDs(cfg.UseHashIDs),
		auth.WithTracer(otel.Tracer(serviceName)),
		auth.WithServiceActivitySink(auth.ActivitySinks(activitymap.LogSink(a.logger), auth.SpanEventSink())),
	}
	for _, p := range providers {
		opts = append(opts, auth.WithNormalizers(p))
	}

	if cfg.S3.Bucket != "" {
		uploader, err := assets.NewS3Uploader(ctx, assets.Config{
			Region:        cfg.S3.Region,
			Bucket:        cfg.S3.Bucket,
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			PublicBaseURL: cfg.S3.PublicBaseURL,
			PathStyle:     cfg.S3.PathStyle,
		})
		if err != nil {
			return fmt.Errorf("assets: %w", err)
		}
		opts = append(opts, auth.WithAssetUploader(uploader))
	} else {
		a.logger.Warn("no asset bucket configured, vendor logo uploads will fail")
	}

	repos := auth.NewRepositoryManager(db)
	if err := repos.Validate(); err != nil {
		return err
	}
	a.service = auth.NewService(repos, tokens, revocations, opts...)

	auther := auth.NewHTTPAuthenticator(a.service, auth.HTTPConfig{
		CookieSecure: cfg.GetCookieSecure(),
		CookieDomain: cfg.CookieDomain,
		Debug:        cfg.Debug,
	})
	auther.Logger = a.logger

	a.app = fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		BodyLimit:             10 * 1024 * 1024,
		ErrorHandler:          auther.ErrorHandler,
	})
	a.app.Use(recover.New())
	a.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	a.app.Use(auth.SessionMiddleware(auth.NewSessionStore(auth.SessionConfig{
		Storage: sessionStorage,
		Secure:  cfg.GetCookieSecure(),
	}), a.logger))

	a.app.Get("/health", func(c *fiber.Ctx) error {
		if err := a.db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(auth.Response{Message: "database unavailable"})
		}
		return c.JSON(auth.Response{Message: "ok"})
	})

	api := a.app.Group("/api/v1/auth")

	controller := auth.NewAuthController(a.service, auther,
		auth.WithControllerLogger(a.logger),
		auth.WithControllerDebug(cfg.Debug),
	)
	auth.RegisterAuthRoutes(api, controller)

	if len(providers) > 0 {
		socialOpts := []social.SocialAuthOption{social.WithLogger(a.logger)}
		for _, p := range providers {
			socialOpts = append(socialOpts, social.WithProvider(p))
		}

		authenticator := social.NewSocialAuthenticator(social.SocialAuthConfig{
			DefaultRedirectURL: cfg.OAuth.SuccessRedirect,
			StateEncryptionKey: []byte(cfg.OAuth.StateEncryptionKey),
			StateHMACKey:       []byte(cfg.OAuth.StateHMACKey),
			StateTTL:           cfg.OAuth.StateTTL,
		}, socialOpts...)

		social.NewHTTPController(authenticator, a.service, social.HTTPConfig{
			SuccessRedirect: cfg.OAuth.SuccessRedirect,
			ErrorRedirect:   cfg.OAuth.ErrorRedirect,
			OnLogin:         auther.SetCredentials,
			Logger:          a.logger,
		}).RegisterRoutes(api)
	}

	return nil
}

// setupRedis picks the shared Redis backends, or process memory when no
// Redis URL is configured.
func (a *App) setupRedis() (auth.RevocationStore, fiber.Storage, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Warn("no redis configured, revocations and sessions are kept in memory")
		return revocation.NewMemoryStore(time.Now), nil, nil
	}

	client, err := revocation.NewRedisClient(a.cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, client.Close)

	storage := redisstorage.New(redisstorage.Config{URL: a.cfg.RedisURL})
	a.closers = append(a.closers, storage.Close)

	return revocation.NewRedisStore(client), storage, nil
}

func (a *App) providers() []social.SocialProvider {
	oauth := a.cfg.OAuth
	var out []social.SocialProvider

	if oauth.GoogleClientID != "" {
		out = append(out, google.New(google.Config{
			ClientID:     oauth.GoogleClientID,
			ClientSecret: oauth.GoogleClientSecret,
			CallbackURL:  a.cfg.GetCallbackURL(string(auth.ProviderGoogle)),
		}))
	}
	if oauth.FacebookClientID != "" {
		out = append(out, facebook.New(facebook.Config{
			ClientID:     oauth.FacebookClientID,
			ClientSecret: oauth.FacebookClientSecret,
			CallbackURL:  a.cfg.GetCallbackURL(string(auth.ProviderFacebook)),
		}))
	}
	if oauth.TwitterClientID != "" {
		out = append(out, twitter.New(twitter.Config{
			ClientID:     oauth.TwitterClientID,
			ClientSecret: oauth.TwitterClientSecret,
			CallbackURL:  a.cfg.GetCallbackURL(string(auth.ProviderTwitter)),
		}))
	}

	return out
}

func (a *App) setupTracing(ctx context.Context) error {
	if a.cfg.OTLPEndpoint == "" {
		return nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(a.cfg.OTLPEndpoint))
	if err != nil {
		return err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	a.shutdown = append(a.shutdown, tp.Shutdown)
	return nil
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			a.logger.Error("shutdown: %v", err)
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close: %v", err)
		}
	}
}

func bcryptCost(cost int) int {
	if cost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}
	return cost
}

func redactedConfig(cfg *config.Config) config.Config {
	out := *cfg
	out.SigningKey = "***"
	out.DatabaseDSN = "***"
	out.S3.SecretKey = "***"
	out.OAuth.StateEncryptionKey = "***"
	out.OAuth.StateHMACKey = "***"
	out.OAuth.GoogleClientSecret = "***"
	out.OAuth.FacebookClientSecret = "***"
	out.OAuth.TwitterClientSecret = "***"
	return out
}
