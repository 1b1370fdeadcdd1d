package httpserver_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/grant-matcher/internal/httpserver"
)

func newHealthRouter(t *testing.T, checks map[string]httpserver.HealthChecker) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	httpserver.RegisterHealthRoutes(router, httpserver.HealthOptions{
		ServiceName:    "grant-matcher",
		ServiceVersion: "1.0.0",
		Checks:         checks,
	})
	return router
}

func getHealth(t *testing.T, router *gin.Engine) (int, httpserver.HealthResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	router.ServeHTTP(w, req)

	var resp httpserver.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return w.Code, resp
}

func TestHealth_AllChecksPass(t *testing.T) {
	t.Parallel()

	router := newHealthRouter(t, map[string]httpserver.HealthChecker{
		"database": httpserver.DatabaseHealthChecker(func() error { return nil }),
		"redis":    httpserver.RedisHealthChecker(func() error { return nil }),
	})

	code, resp := getHealth(t, router)
	if code != http.StatusOK {
		t.Errorf("status code = %d, want %d", code, http.StatusOK)
	}
	if resp.Status != httpserver.HealthStatusHealthy {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if len(resp.Checks) != 2 {
		t.Errorf("checks = %d, want 2", len(resp.Checks))
	}
}

func TestHealth_RedisFailureOnlyDegrades(t *testing.T) {
	t.Parallel()

	router := newHealthRouter(t, map[string]httpserver.HealthChecker{
		"database": httpserver.DatabaseHealthChecker(func() error { return nil }),
		"redis":    httpserver.RedisHealthChecker(func() error { return errors.New("connection refused") }),
	})

	code, resp := getHealth(t, router)
	if code != http.StatusOK {
		t.Errorf("status code = %d, want %d (degraded still serves)", code, http.StatusOK)
	}
	if resp.Status != httpserver.HealthStatusDegraded {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
}

func TestHealth_DatabaseFailureIsUnhealthy(t *testing.T) {
	t.Parallel()

	router := newHealthRouter(t, map[string]httpserver.HealthChecker{
		"database": httpserver.DatabaseHealthChecker(func() error { return errors.New("connection refused") }),
		"redis":    httpserver.RedisHealthChecker(func() error { return errors.New("connection refused") }),
	})

	code, resp := getHealth(t, router)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Status != httpserver.HealthStatusUnhealthy {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
}

func TestHealth_HeadRequest(t *testing.T) {
	t.Parallel()

	router := newHealthRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/health", http.NoBody)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
}
