package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/capture/capturetest"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/config"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/handler"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/middleware"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/orchestrator"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const validConfig = `
gateway:
  api_url: http://localhost:5000
extractor:
  api_url: http://localhost:5001
auth:
  jwt_secret: test-secret
`

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Gateway.APIURL = "http://127.0.0.1:1"
	cfg.Extractor.APIURL = "http://127.0.0.1:1"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenExpireHours = 1
	cfg.RateLimit.Requests = 100
	cfg.RateLimit.WindowSeconds = 60
	return cfg
}

func testRouter(cfg *config.Config) *gin.Engine {
	registry := orchestrator.NewRegistry()
	sessions := handler.NewSessionHandler(handler.SessionDeps{
		Registry:  registry,
		Store:     service.NewSessionStore(&cfg.Store),
		Backend:   service.NewGatewayClient(&cfg.Gateway),
		Extractor: &capturetest.Extractor{},
		Scheduler: &capturetest.StepScheduler{},
		Capture:   cfg.Capture,
	})
	return newRouter(cfg, sessions, handler.NewAuthHandler(registry))
}

func TestRouterHealth(t *testing.T) {
	router := testRouter(testConfig())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("Expected ok status, got %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header to be set")
	}
}

func TestRouterMetrics(t *testing.T) {
	router := testRouter(testConfig())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRouterAPIRequiresAuth(t *testing.T) {
	cfg := testConfig()
	router := testRouter(cfg)

	req := httptest.NewRequest("GET", "/api/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}

	token, _, err := middleware.GenerateToken("alice", &cfg.Auth)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"username":"alice"`) {
		t.Errorf("Expected username alice, got %s", w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Errorf("Expected no-store Cache-Control, got '%s'", got)
	}
}

func TestRouterRateLimitsSessionStarts(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Requests = 1
	router := testRouter(cfg)

	token, _, err := middleware.GenerateToken("alice", &cfg.Auth)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/payments", strings.NewReader(`{"amount":-1}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusBadRequest {
		t.Errorf("Expected first request to reach the handler, got %d", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", codes[1])
	}
}

func TestCORSPreflight(t *testing.T) {
	router := testRouter(testConfig())

	req := httptest.NewRequest("OPTIONS", "/api/payments", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected Access-Control-Allow-Origin header")
	}
}

func TestConfigValidateCommand(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		content   string
		expectErr bool
	}{
		{"valid", validConfig, false},
		{"missing gateway", "auth:\n  jwt_secret: s\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}

			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs([]string{"config", "validate", "--config", path})

			err := cmd.Execute()
			if tt.expectErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.expectErr {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				if !strings.Contains(out.String(), "is valid") {
					t.Errorf("Expected confirmation, got '%s'", out.String())
				}
			}
		})
	}
}

func TestTokenCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validConfig), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"token", "--config", path, "--user", "alice"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Count(strings.TrimSpace(stdout.String()), ".") != 2 {
		t.Errorf("Expected a JWT on stdout, got '%s'", stdout.String())
	}

	cmd = newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"token", "--config", path})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error without --user")
	}
}
