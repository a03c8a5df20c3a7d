package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"speech-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	LogLevel        string
	CORSAllowOrigin []string
	AWSRegion       string

	UploadsBucket    string
	UploadsPrefix    string
	UploadURLExpires time.Duration

	RecordStore       string
	DynamoTable       string
	DynamoUserIndex   string
	DatabaseURL       string
	SQSQueueURL       string

	// Per-user limits on upload URL issuance.
	UploadRatePerMinute int
	UploadRateBurst     int

	Transcribe TranscribeConfig
	Cognito    CognitoConfig

	JWTSecret     string
	UIRedirectURL string
}

// TranscribeConfig controls transcription job submission and polling.
type TranscribeConfig struct {
	PollInterval     time.Duration
	MaxWait          time.Duration
	MediaFormat      string
	LanguageCode     string
	FailOnJobFailure bool
	FetchTimeout     time.Duration
}

// CognitoConfig describes the user pool used for sign-in and token verification.
type CognitoConfig struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
	Domain       string
	RedirectURL  string
	LogoutURL    string
}

// Issuer returns the token issuer for the pool, or "" when no pool is configured.
func (c CognitoConfig) Issuer() string {
	if c.Region == "" || c.UserPoolID == "" {
		return ""
	}
	return "https://cognito-idp." + c.Region + ".amazonaws.com/" + c.UserPoolID
}

// JWKSURL returns the pool's signing key set location.
func (c CognitoConfig) JWKSURL() string {
	iss := c.Issuer()
	if iss == "" {
		return ""
	}
	return iss + "/.well-known/jwks.json"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	region := getEnv("AWS_REGION", "us-east-1")

	cfg := Config{
		Env:             env,
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		AWSRegion:       region,

		UploadsBucket:    getEnv("UPLOADS_S3_BUCKET", ""),
		UploadsPrefix:    getEnv("UPLOADS_S3_PREFIX", ""),
		UploadURLExpires: getDuration("UPLOAD_URL_EXPIRES", time.Hour),

		RecordStore:       normalizeRecordStore(getEnv("RECORD_STORE", "")),
		DynamoTable:       getEnv("DYNAMODB_TABLE", "speech_analysis"),
		DynamoUserIndex:   getEnv("DYNAMODB_USER_INDEX", ""),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQSQueueURL:       getEnv("SPEECH_SQS_QUEUE_URL", ""),

		UploadRatePerMinute: getInt("UPLOAD_RATE_PER_MINUTE", 10),
		UploadRateBurst:     getInt("UPLOAD_RATE_BURST", 5),

		Transcribe: TranscribeConfig{
			PollInterval:     getDuration("TRANSCRIBE_POLL_INTERVAL", 5*time.Second),
			MaxWait:          getDuration("TRANSCRIBE_MAX_WAIT", 0),
			MediaFormat:      getEnv("TRANSCRIBE_MEDIA_FORMAT", "mp3"),
			LanguageCode:     getEnv("TRANSCRIBE_LANGUAGE_CODE", "en-US"),
			FailOnJobFailure: getBool("TRANSCRIBE_FAIL_ON_JOB_FAILURE", false),
			FetchTimeout:     getDuration("TRANSCRIPT_FETCH_TIMEOUT", 30*time.Second),
		},
		Cognito: CognitoConfig{
			Region:       getEnv("COGNITO_REGION", region),
			UserPoolID:   getEnv("COGNITO_USER_POOL_ID", ""),
			ClientID:     getEnv("COGNITO_APP_CLIENT_ID", ""),
			ClientSecret: getEnv("COGNITO_APP_CLIENT_SECRET", ""),
			Domain:       strings.TrimRight(getEnv("COGNITO_DOMAIN", ""), "/"),
			RedirectURL:  getEnv("COGNITO_REDIRECT_URL", ""),
			LogoutURL:    getEnv("COGNITO_LOGOUT_REDIRECT_URL", ""),
		},

		JWTSecret:     getEnv("JWT_SECRET", ""),
		UIRedirectURL: getEnv("UI_REDIRECT_URL", ""),
	}

	if env == "production" {
		if cfg.Cognito.UserPoolID == "" {
			telemetry.Warn("config.missing", map[string]any{"key": "COGNITO_USER_POOL_ID", "env": env})
		}
		if cfg.RecordStore == "postgres" && cfg.DatabaseURL == "" {
			telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL", "record_store": cfg.RecordStore})
		}
	}

	return cfg
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// getDuration accepts Go duration strings ("5s") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeRecordStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dynamodb", "dynamo", "ddb":
		return "dynamodb"
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "memory", "mem":
		return "memory"
	default:
		return ""
	}
}

// IsDevLike reports whether env allows in-memory fallbacks and dev tokens.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
