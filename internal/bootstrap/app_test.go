package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"speech-backend/internal/analyses"
	"speech-backend/internal/shared/auth"
	"speech-backend/internal/shared/config"
)

func testConfig() config.Config {
	return config.Config{
		Env:              "dev",
		LogLevel:         "error",
		AWSRegion:        "us-east-1",
		UploadsBucket:    "uploads",
		UploadURLExpires: time.Hour,
		RecordStore:      "memory",
		JWTSecret:        "test-secret",
		Transcribe: config.TranscribeConfig{
			PollInterval: 5 * time.Second,
			MediaFormat:  "mp3",
			LanguageCode: "en-US",
			FetchTimeout: time.Second,
		},
	}
}

func TestBuildWiresMemoryStoreAndDevAuth(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKID")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")

	app, err := Build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := app.Records.(*analyses.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", app.Records)
	}
	if _, ok := app.Verifier.(*auth.HMACVerifier); !ok {
		t.Fatalf("expected dev verifier, got %T", app.Verifier)
	}
	if app.Objects.Bucket() != "uploads" {
		t.Fatalf("expected uploads bucket, got %q", app.Objects.Bucket())
	}
	if app.Processor == nil || app.Processor.Store != app.Records {
		t.Fatalf("processor must write to the shared record store")
	}

	_ = app.Records.Put(context.Background(), analyses.Record{ID: "a.mp3", UserID: "u1", Status: analyses.StatusTranscribing})
	token, _ := auth.SignDevToken("test-secret", auth.Claims{Sub: "sub-1", Username: "u1"}, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/speech/analysis", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestBuildRejectsUnknownStore(t *testing.T) {
	cfg := testConfig()
	cfg.RecordStore = "cassandra"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown record store")
	}
}

func TestBuildVerifierPrefersCognito(t *testing.T) {
	cfg := testConfig()
	cfg.Cognito = config.CognitoConfig{Region: "us-east-1", UserPoolID: "us-east-1_pool", ClientID: "client-1"}
	v, err := buildVerifier(cfg)
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	if verifierKind(v) != "cognito" {
		t.Fatalf("expected cognito verifier, got %T", v)
	}
}

func TestBuildVerifierUnconfigured(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	v, err := buildVerifier(cfg)
	if err != nil || v != nil {
		t.Fatalf("expected no verifier, got %T %v", v, err)
	}
}

func TestDefaultStoreKind(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		dbURL  string
		lambda bool
		want   string
	}{
		{name: "database url wins", env: "prod", dbURL: "postgres://x", lambda: true, want: "postgres"},
		{name: "dev server", env: "dev", want: "memory"},
		{name: "dev lambda", env: "dev", lambda: true, want: "dynamodb"},
		{name: "prod server", env: "prod", want: "dynamodb"},
		{name: "prod lambda", env: "prod", lambda: true, want: "dynamodb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{Env: tt.env, DatabaseURL: tt.dbURL}
			if got := defaultStoreKind(cfg, tt.lambda); got != tt.want {
				t.Fatalf("defaultStoreKind = %q, want %q", got, tt.want)
			}
		})
	}
}
