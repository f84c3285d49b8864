// Package main is the entrypoint for the Quillbase API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/cache"
	"github.com/quillbase/quillbase/internal/config"
	"github.com/quillbase/quillbase/internal/handler"
	"github.com/quillbase/quillbase/internal/jobs"
	"github.com/quillbase/quillbase/internal/mail"
	"github.com/quillbase/quillbase/internal/media"
	"github.com/quillbase/quillbase/internal/metrics"
	"github.com/quillbase/quillbase/internal/middleware"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/oauth"
	"github.com/quillbase/quillbase/internal/repository"
	"github.com/quillbase/quillbase/internal/server"
	"github.com/quillbase/quillbase/internal/service"
	"github.com/quillbase/quillbase/migrations"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	policies, err := config.LoadPolicies(cfg.PolicyFile)
	if err != nil {
		logger.Error("failed to load policies", "error", err, "path", cfg.PolicyFile)
		os.Exit(1)
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		applied, err := migrations.Up(ctx, repo.Pool())
		if err != nil {
			logger.Error("failed to apply migrations", "error", sanitizeError(err, cfg.DatabaseURL))
			os.Exit(1)
		}
		logger.Info("migrations applied", "count", applied)
	}

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()
	deps := service.Deps{Logger: logger, Metrics: recorder}

	publisher := jobs.NewPublisher(cacheClient.Client(), logger, recorder)
	publisher.SetMaxLen(cfg.JobsStreamMaxLen)

	// Background collaborators
	renderer, err := mail.NewRenderer(cfg.MailFromName)
	if err != nil {
		logger.Error("failed to load mail templates", "error", err)
		os.Exit(1)
	}
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		TLS:      cfg.SMTPTLS,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
	if err != nil {
		logger.Error("failed to configure SMTP", "error", err)
		os.Exit(1)
	}
	mailer := mail.NewMailer(renderer, sender, logger)
	downloader := media.NewDownloader(media.DownloaderConfig{
		Dir:      cfg.MediaDownloadDir,
		MaxBytes: cfg.MediaMaxBytes,
		Logger:   logger,
	})

	var google service.GoogleLogin
	if cfg.GoogleEnabled() {
		google = oauth.NewGoogle(oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}, cacheClient)
	} else {
		logger.Warn("google login disabled", "reason", "GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	keyEnv := auth.EnvTest
	if cfg.IsProduction() {
		keyEnv = auth.EnvLive
	}

	// Initialize services
	postCache := cache.NewRecords[*model.BlogPost](cacheClient, model.KindBlogPost, cfg.CacheTTL, recorder)
	blogService := service.NewBlogService(repo.Blogs(), repo.BlogPosts(), policies, postCache, deps)
	contactService := service.NewContactService(repo.Contacts(), repo.ContactMessages(), policies, publisher,
		service.ContactConfig{AdminEmail: cfg.AdminEmail}, deps)
	pinService := service.NewPinService(repo, deps)
	pageService := service.NewPageService(repo.Pages(), repo, policies, deps)
	videoService := service.NewVideoService(repo.Videos(), repo, media.NewFetcher(cfg.MediaFetchTimeout), publisher, policies, deps)
	mailService := service.NewMailService(publisher)
	accountService := service.NewAccountService(repo, repo, cacheClient, google, keyEnv, deps)

	// Initialize handlers
	app := &routes{
		root:     handler.New(),
		health:   handler.NewHealthHandler(handler.Dependency{Name: "postgres", Checker: repo}, handler.Dependency{Name: "redis", Checker: cacheClient}),
		metrics:  handler.NewMetricsHandler(recorder),
		blogs:    handler.NewBlogHandler(blogService, logger),
		contacts: handler.NewContactHandler(contactService, pinService, logger),
		pages:    handler.NewPageHandler(pageService, logger),
		videos:   handler.NewVideoHandler(videoService, logger),
		email:    handler.NewEmailHandler(mailService, logger),
		google:   handler.NewGoogleHandler(accountService, logger),
		apiKeys:  handler.NewAPIKeyHandler(logger, accountService),
		admin:    handler.NewAdminHandler(repo, repo, cacheClient, logger),
	}

	authCfg := middleware.AuthConfig{
		Logger: logger,
		Keys:   repo,
		Cache:  cacheClient,
	}
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:        logger,
		Limiter:       cacheClient,
		APIEnabled:    cfg.RateLimitAPIEnabled,
		PublicEnabled: cfg.RateLimitPublicEnabled,
		PublicRPM:     cfg.RateLimitPublicRPM,
		PublicBurst:   cfg.RateLimitPublicBurst,
	}

	// Setup router
	r, err := setupRouter(app, authCfg, rateLimitCfg, cfg, logger)
	if err != nil {
		logger.Error("invalid router configuration", "error", err)
		os.Exit(1)
	}

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	if cfg.JobsWorkerEnabled {
		for _, w := range []struct {
			stream string
			kind   string
			handle jobs.HandlerFunc
		}{
			{jobs.StreamMail, mail.JobKind, mailer.HandleJob},
			{jobs.StreamMedia, media.JobKind, downloader.HandleJob},
		} {
			worker := jobs.NewWorker(cacheClient.Client(), w.stream, logger, jobs.NewConsumerID(), recorder)
			worker.Handle(w.kind, w.handle)
			worker.SetMaxAttempts(cfg.JobsMaxAttempts)
			worker.SetMaxLen(cfg.JobsStreamMaxLen)

			srv.Go("worker "+w.stream, worker.Run)
			srv.OnShutdown("worker "+w.stream, worker.Shutdown)
		}
	} else {
		logger.Warn("jobs workers disabled; queued mail and downloads wait for another instance")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"google_login", cfg.GoogleEnabled(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routes groups the HTTP handlers mounted by setupRouter.
type routes struct {
	root     *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	blogs    *handler.BlogHandler
	contacts *handler.ContactHandler
	pages    *handler.PageHandler
	videos   *handler.VideoHandler
	email    *handler.EmailHandler
	google   *handler.GoogleHandler
	apiKeys  *handler.APIKeyHandler
	admin    *handler.AdminHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	app *routes,
	authCfg middleware.AuthConfig,
	rateLimitCfg middleware.RateLimitConfig,
	cfg *config.Config,
	logger *slog.Logger,
) (*chi.Mux, error) {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	corsCfg.Logger = logger
	cors, err := middleware.CORS(corsCfg)
	if err != nil {
		return nil, fmt.Errorf("CORS_ALLOWED_ORIGINS: %w", err)
	}

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, !cfg.IsProduction()))
	r.Use(middleware.Security(middleware.SecurityConfig{
		HSTS:           !cfg.IsDevelopment(),
		PublicMaxAge:   cfg.PublicCacheMaxAge,
		PublicPrefixes: middleware.DefaultPublicPrefixes,
	}))
	r.Use(cors)
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", app.health.Healthz)
	r.Get("/readyz", app.health.Readyz)
	r.Get("/metrics", app.metrics.Metrics)

	// Root info endpoint
	r.Get("/", app.root.Hello)

	// Google login
	r.Get("/google/generate_url", app.google.GenerateURL)
	r.Get("/google/token", app.google.Token)

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads; a presented key still identifies the caller.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(authCfg))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Get("/blogs", app.blogs.List)
			r.Get("/blogs/{blogID}", app.blogs.Get)
			r.Get("/blogs/{blogID}/posts", app.blogs.ListPosts)
			r.Get("/blogs/{blogID}/posts/{postID}", app.blogs.GetPost)
			r.Get("/users/{userID}/posts", app.blogs.ListUserPosts)

			r.Get("/contacts", app.contacts.List)
			r.Get("/contacts/{id}", app.contacts.Get)

			r.Get("/pages", app.pages.List)
			r.Get("/pages/{id}", app.pages.Get)
			r.Get("/pages/by/{field}/{value}", app.pages.Find)

			// Public forms are limited per client IP
			r.With(middleware.RateLimitIP(rateLimitCfg, "contactus")).Post("/contactus", app.contacts.SubmitMessage)
			r.Route("/contact/secure", func(r chi.Router) {
				r.Use(middleware.RateLimitIP(rateLimitCfg, "contact_pin"))
				r.Post("/", app.contacts.CreatePin)
				r.Post("/login", app.contacts.Login)
				r.Put("/{email}", app.contacts.ResetPin)
			})
		})

		// Everything else requires an API key
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.With(middleware.RequireWrite()).Post("/blogs", app.blogs.Create)
			r.With(middleware.RequireWrite()).Patch("/blogs/{blogID}", app.blogs.Update)
			r.With(middleware.RequireWrite()).Delete("/blogs/{blogID}", app.blogs.Delete)
			r.With(middleware.RequireWrite()).Post("/blogs/{blogID}/posts", app.blogs.CreatePost)
			r.With(middleware.RequireWrite()).Patch("/blogs/{blogID}/posts/{postID}", app.blogs.UpdatePost)
			r.With(middleware.RequireWrite()).Delete("/blogs/{blogID}/posts/{postID}", app.blogs.DeletePost)

			r.With(middleware.RequireWrite()).Post("/contacts", app.contacts.Create)
			r.With(middleware.RequireWrite()).Patch("/contacts/{id}", app.contacts.Update)
			r.With(middleware.RequireWrite()).Delete("/contacts/{id}", app.contacts.Delete)

			// Contact-us inbox (superusers only, enforced by the service)
			r.With(middleware.RequireRead()).Get("/contactus", app.contacts.ListMessages)
			r.With(middleware.RequireRead()).Get("/contactus/{id}", app.contacts.GetMessage)
			r.With(middleware.RequireWrite()).Delete("/contactus/{id}", app.contacts.DeleteMessage)

			r.With(middleware.RequireWrite()).Post("/pages", app.pages.Create)
			r.With(middleware.RequireWrite()).Patch("/pages/{id}", app.pages.Update)
			r.With(middleware.RequireWrite()).Delete("/pages/{id}", app.pages.Delete)

			r.Route("/videos", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", app.videos.ListMine)
				r.With(middleware.RequireWrite()).Post("/", app.videos.Bookmark)
				r.With(middleware.RequireRead()).Get("/{id}", app.videos.Get)
				r.With(middleware.RequireWrite()).Patch("/{id}", app.videos.Update)
				r.With(middleware.RequireWrite()).Delete("/{id}", app.videos.Delete)
				r.With(middleware.RequireWrite()).Post("/{id}/download", app.videos.Download)
				r.With(middleware.RequireWrite()).Post("/{id}/{action}", app.videos.React)
			})

			r.Route("/email", func(r chi.Router) {
				r.Use(middleware.RequireMail())
				r.Post("/send", app.email.Send)
				r.Post("/send/{kind}", app.email.Send)
			})

			// API key management
			r.Route("/api-keys", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", app.apiKeys.ListAPIKeys)
				r.With(middleware.RequireWrite()).Post("/", app.apiKeys.CreateAPIKey)
				r.With(middleware.RequireWrite()).Delete("/{key_id}", app.apiKeys.RevokeAPIKey)
				r.With(middleware.RequireWrite()).Post("/{key_id}/rotate", app.apiKeys.RotateAPIKey)
			})

			r.Route("/admin/users", func(r chi.Router) {
				r.Use(middleware.RequireSuperuser())
				r.Get("/{userID}", app.admin.GetUser)
				r.Put("/{userID}/superuser", app.admin.SetSuperuser)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(app.root.NotFound)
	r.MethodNotAllowed(app.root.MethodNotAllowed)

	return r, nil
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
