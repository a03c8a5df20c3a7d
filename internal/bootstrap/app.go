package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	transcribetypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/gin-gonic/gin"

	"speech-backend/internal/analyses"
	cognitoauth "speech-backend/internal/auth"
	"speech-backend/internal/services/health"
	"speech-backend/internal/shared/auth"
	"speech-backend/internal/shared/config"
	"speech-backend/internal/shared/server"
	"speech-backend/internal/shared/server/middleware"
	"speech-backend/internal/shared/storage/db"
	s3store "speech-backend/internal/shared/storage/object/s3"
	"speech-backend/internal/shared/telemetry"
	"speech-backend/internal/transcription"
	"speech-backend/internal/uploads"
)

// App holds shared dependencies for every entry point.
type App struct {
	Config    config.Config
	AWS       aws.Config
	Router    *gin.Engine
	DB        *sql.DB
	Records   analyses.Store
	Objects   *s3store.Store
	Verifier  auth.Verifier
	Processor *analyses.Processor
}

// Build prepares shared dependencies and the HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	telemetry.SetLevel(cfg.LogLevel)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	app := &App{Config: cfg, AWS: awsCfg}

	if err := app.buildRecords(ctx); err != nil {
		return nil, err
	}

	objects, err := s3store.New(awsCfg, cfg.UploadsBucket, cfg.UploadsPrefix, cfg.UploadURLExpires)
	if err != nil {
		return nil, err
	}
	app.Objects = objects

	verifier, err := buildVerifier(cfg)
	if err != nil {
		return nil, err
	}
	app.Verifier = verifier

	app.Processor = &analyses.Processor{
		Objects: objects,
		Transcriber: &transcription.Runner{
			Client:       transcribe.NewFromConfig(awsCfg),
			Interval:     cfg.Transcribe.PollInterval,
			MaxWait:      cfg.Transcribe.MaxWait,
			MediaFormat:  transcribetypes.MediaFormat(cfg.Transcribe.MediaFormat),
			LanguageCode: transcribetypes.LanguageCode(cfg.Transcribe.LanguageCode),
		},
		Fetcher:          transcription.NewFetcher(cfg.Transcribe.FetchTimeout),
		Store:            app.Records,
		FailOnJobFailure: cfg.Transcribe.FailOnJobFailure,
	}

	var uploadHandler *uploads.Handler
	if cfg.UploadsBucket != "" {
		uploadHandler = uploads.NewHandler(objects)
	}

	var healthDB health.Pinger
	if app.DB != nil {
		healthDB = app.DB
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        verifier,
		Health:          health.NewService(healthDB),
		AnalysisHandler: analyses.NewHandler(app.Records),
		UploadHandler:   uploadHandler,
		CognitoAuth: cognitoauth.NewCognitoService(cognitoauth.CognitoOptions{
			Domain:       cfg.Cognito.Domain,
			ClientID:     cfg.Cognito.ClientID,
			ClientSecret: cfg.Cognito.ClientSecret,
			RedirectURL:  cfg.Cognito.RedirectURL,
			LogoutURL:    cfg.Cognito.LogoutURL,
			UIRedirect:   cfg.UIRedirectURL,
		}, verifier),
		RateLimiter: middleware.NewRateLimiter(0, 0, nil),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"record_store": storeKind(app.Records),
		"auth":         verifierKind(verifier),
		"uploads":      uploadHandler != nil,
		"bucket":       app.Objects.Bucket(),
	})
	return app, nil
}

func (app *App) buildRecords(ctx context.Context) error {
	cfg := app.Config
	kind := cfg.RecordStore
	if kind == "" {
		kind = defaultStoreKind(cfg, db.IsLambdaRuntime())
	}

	switch kind {
	case "memory":
		app.Records = analyses.NewMemoryStore()
		return nil
	case "dynamodb":
		app.Records = &analyses.DynamoStore{
			Client:    dynamodb.NewFromConfig(app.AWS),
			Table:     cfg.DynamoTable,
			UserIndex: cfg.DynamoUserIndex,
		}
		return nil
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return err
		}
		app.DB = sqlDB
		app.Records = &analyses.PGStore{DB: sqlDB}
		return nil
	default:
		return fmt.Errorf("unknown record store %q", kind)
	}
}

// defaultStoreKind picks a store when RECORD_STORE is unset. Lambda functions
// never share process memory, so they never default to the memory store.
func defaultStoreKind(cfg config.Config, lambda bool) string {
	switch {
	case cfg.DatabaseURL != "":
		return "postgres"
	case lambda:
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.lambda_default_store", map[string]any{
				"env":   cfg.Env,
				"store": "dynamodb",
			})
		}
		return "dynamodb"
	case config.IsDevLike(cfg.Env):
		telemetry.Warn("bootstrap.memory_store", map[string]any{"env": cfg.Env})
		return "memory"
	default:
		return "dynamodb"
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFor(db.ProfileLambda))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFor(db.ProfileServer))
	}
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

// buildVerifier prefers the user pool key set. The shared-secret verifier is
// only used when no pool is configured.
func buildVerifier(cfg config.Config) (auth.Verifier, error) {
	if jwksURL := cfg.Cognito.JWKSURL(); jwksURL != "" {
		return auth.NewJWKSVerifier(auth.JWKSOptions{
			URL:      jwksURL,
			Issuer:   cfg.Cognito.Issuer(),
			ClientID: cfg.Cognito.ClientID,
		})
	}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		if !config.IsDevLike(cfg.Env) || db.IsLambdaRuntime() {
			telemetry.Warn("bootstrap.dev_tokens", map[string]any{
				"env":    cfg.Env,
				"lambda": db.IsLambdaRuntime(),
			})
		}
		return auth.NewHMACVerifier(cfg.JWTSecret)
	}
	telemetry.Warn("bootstrap.auth_unconfigured", map[string]any{
		"env": cfg.Env,
	})
	return nil, nil
}

func storeKind(s analyses.Store) string {
	switch s.(type) {
	case *analyses.MemoryStore:
		return "memory"
	case *analyses.DynamoStore:
		return "dynamodb"
	case *analyses.PGStore:
		return "postgres"
	default:
		return "unknown"
	}
}

func verifierKind(v auth.Verifier) string {
	switch v.(type) {
	case *auth.JWKSVerifier:
		return "cognito"
	case *auth.HMACVerifier:
		return "dev"
	default:
		return "none"
	}
}
