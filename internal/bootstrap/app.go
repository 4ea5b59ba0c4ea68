package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "writer-backend/internal/auth"
	"writer-backend/internal/credits"
	"writer-backend/internal/dashboard"
	"writer-backend/internal/editor"
	"writer-backend/internal/generation"
	"writer-backend/internal/payments"
	"writer-backend/internal/pipeline"
	"writer-backend/internal/queue"
	"writer-backend/internal/requests"
	"writer-backend/internal/shared/auth"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/server"
	"writer-backend/internal/shared/storage/db"
	"writer-backend/internal/shared/storage/object"
	localstore "writer-backend/internal/shared/storage/object/local"
	s3store "writer-backend/internal/shared/storage/object/s3"
	"writer-backend/internal/shared/telemetry"
	"writer-backend/internal/sources"
	"writer-backend/internal/users"
)

// App holds shared dependencies for the api, worker and CLI binaries.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Queue    queue.Client
	Sessions editor.SessionStore
	Signer   *auth.Signer

	UsersRepo    users.Repo
	ItemsRepo    pipeline.Repo
	UsersService *users.Service
	Ledger       *credits.Ledger
	Catalog      *credits.Catalog
	Payments     payments.Processor
	Generator    generation.Client
	Pipeline     *pipeline.Service
	Editor       *editor.Service

	closers []io.Closer
}

// Options tune Build for the calling binary.
type Options struct {
	// DBOptions configures the connection pool. Zero means server defaults.
	DBOptions db.Options
	// SkipRouter leaves Router nil for binaries that serve no HTTP.
	SkipRouter bool
	// SkipMigrations leaves the schema untouched.
	SkipMigrations bool
}

// Build prepares shared dependencies and, unless skipped, the HTTP router.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB)
	}

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if c, ok := app.Queue.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	if app.Sessions, err = buildSessions(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if c, ok := app.Sessions.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}
	if !opts.SkipRouter {
		app.Router = buildRouter(app)
	}
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			telemetry.Warn("bootstrap.close_failed", map[string]any{"error": err})
		}
	}
	a.closers = nil
}

func buildDB(ctx context.Context, cfg config.Config, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	poolOpts := opts.DBOptions
	if poolOpts == (db.Options{}) {
		poolOpts = db.OptionsFromEnv(db.DefaultServerOptions())
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, poolOpts)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if !opts.SkipMigrations {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			KMSKeyID:  cfg.SSEKMSKeyID,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildQueue returns nil for the inline backend; the pipeline then runs
// jobs in-process.
func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	switch cfg.QueueBackend {
	case "sqs":
		return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
	case "pubsub":
		return queue.NewPubSubClient(ctx, cfg.GCPProjectID, cfg.PubSubTopic, cfg.GCPClientOptions()...)
	default:
		return nil, nil
	}
}

func buildSessions(ctx context.Context, cfg config.Config) (editor.SessionStore, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return editor.NewMemoryStore(), nil
	}
	return editor.NewRedisStore(ctx, cfg.RedisURL, "writer:editor:")
}

func buildPayments(cfg config.Config) (payments.Processor, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		if strings.TrimSpace(cfg.StripeSecretKey) == "" {
			return nil, errors.New("PAYMENT_PROVIDER=stripe requires STRIPE_SECRET_KEY")
		}
		return payments.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeCurrency), nil
	case "", "dev":
		if !cfg.IsDevLike() {
			return nil, errors.New("the dev payment provider is only available in dev")
		}
		return payments.DevProcessor{}, nil
	default:
		return nil, fmt.Errorf("unknown PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	var creditStore credits.Store
	if app.DB != nil {
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.ItemsRepo = &pipeline.PGRepo{DB: app.DB}
		creditStore = &credits.PGStore{DB: app.DB}
	} else {
		memUsers := users.NewMemoryRepo()
		app.UsersRepo = memUsers
		app.ItemsRepo = pipeline.NewMemoryRepo()
		creditStore = credits.NewMemoryStore(memUsers)
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL, cfg.Env)
	if err != nil {
		return err
	}
	app.Signer = signer

	if app.Payments, err = buildPayments(cfg); err != nil {
		return err
	}

	app.Generator, err = generation.New(generation.Options{
		Provider: cfg.GenerationProvider,
		Model:    cfg.GenerationModel,
		BaseURL:  cfg.GenerationBaseURL,
		APIKey:   cfg.GenerationAPIKey,
		Timeout:  cfg.GenerationTimeout,
		Sources:  sources.NewFetcher(cfg.SourceFetchTimeout),
	})
	if err != nil {
		return err
	}

	app.UsersService = users.NewService(app.UsersRepo, cfg.SignupCredits)
	app.Ledger = credits.NewLedger(creditStore)
	app.Catalog = credits.DefaultCatalog()
	app.Pipeline = &pipeline.Service{
		Repo:      app.ItemsRepo,
		Ledger:    app.Ledger,
		Validator: requests.NewValidator(),
		Generator: app.Generator,
		Jobs:      app.Queue,
		Timeout:   cfg.GenerationTimeout,
	}
	app.Editor = editor.NewService(app.Pipeline, app.Sessions, cfg.EditorSessionTTL)
	return nil
}

func buildRouter(app *App) *gin.Engine {
	cfg := app.Config
	deps := server.RouterDeps{
		Config:           cfg,
		DB:               app.DB,
		Verifier:         app.Signer,
		UserHandler:      users.NewHandler(app.UsersService, app.Signer),
		CreditsHandler:   credits.NewHandler(app.Ledger, app.Catalog, app.Payments),
		PipelineHandler:  pipeline.NewHandler(app.Pipeline, app.Store),
		EditorHandler:    editor.NewHandler(app.Editor),
		DashboardHandler: dashboard.NewHandler(app.Pipeline),
	}
	if cfg.GoogleClientID != "" {
		deps.GoogleAuth = googleauth.NewGoogleService(googleauth.GoogleConfig{
			ClientID:      cfg.GoogleClientID,
			ClientSecret:  cfg.GoogleClientSecret,
			RedirectURL:   cfg.GoogleRedirectURL,
			UIRedirectURL: cfg.UIRedirectURL,
		}, app.UsersService, app.Signer, app.Sessions)
	}
	return server.NewRouter(deps)
}
