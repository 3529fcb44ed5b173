package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/tariffdesk/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const legacyTariffs = `{
  "full": {"title": "Полная проверка", "subtitle": "Все камеры", "plans": [
    {"name": "L", "price": "2000", "features": ["b"]},
    {"name": "M", "price": "1000", "features": ["a", " "]}
  ]},
  "single": {"title": "Одна камера", "subtitle": "", "plans": []}
}`

// testConfig returns a minimal config for testing
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tariffs := filepath.Join(dir, "tariffs.json")
	scores := filepath.Join(dir, "healthScores.json")
	require.NoError(t, os.WriteFile(tariffs, []byte(legacyTariffs), 0o600))
	require.NoError(t, os.WriteFile(scores, []byte(`{"labels":["Jan","Feb"],"values":[91,95]}`), 0o600))

	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "error",
		LogFormat:          "text",
		TariffsSource:      tariffs,
		HealthScoresSource: scores,
		TariffsDocument:    config.DefaultTariffsDocument,
		FetchTimeout:       time.Second,
		FetchAttempts:      1,
		EditorEnabled:      true,
		EditorSessionTTL:   time.Hour,
		RateLimitRPM:       100000,
		MaxBodyBytes:       config.DefaultMaxBodyBytes,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	s.drainDelay = 0
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := do(s, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	assert.Equal(t, http.StatusOK, do(s, "GET", "/health/live", "").Code)
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	// Run() has not been called
	assert.Equal(t, http.StatusServiceUnavailable, do(s, "GET", "/health/ready", "").Code)

	s.ready.Store(true)
	assert.Equal(t, http.StatusOK, do(s, "GET", "/health/ready", "").Code)
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	req := httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	expected := []string{
		"GET:/",
		"GET:/ws",
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/v1/tariffs",
		"GET:/v1/tariffs/:id",
		"GET:/v1/health-scores",
		"POST:/v1/editor/sessions",
		"PATCH:/v1/editor/sessions/:id/tariffs/:tariffKey",
		"GET:/v1/editor/sessions/:id/download",
	}

	routeSet := make(map[string]bool)
	for _, route := range s.Router().Routes() {
		routeSet[route.Method+":"+route.Path] = true
	}
	for _, e := range expected {
		assert.True(t, routeSet[e], "route %s not registered", e)
	}
}

func TestEditorDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.EditorEnabled = false
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusNotFound, do(s, "POST", "/v1/editor/sessions", "").Code)

	w := do(s, "GET", "/?dev=tariffs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "dev-tariffs")
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

func TestPricingPage(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := do(s, "GET", "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "full-check-trigger")
	assert.Contains(t, body, "single-cam-trigger")
	assert.Contains(t, body, "healthScoreChart")
	assert.NotContains(t, body, "dev-tariffs", "editor must only load with ?dev=tariffs")
	assert.NotContains(t, body, editorSlot)

	w = do(s, "GET", "/?dev=other", "")
	assert.NotContains(t, w.Body.String(), "dev-tariffs")
}

func TestEditorPage(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := do(s, "GET", "/?dev=tariffs", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "dev-tariffs")
	assert.Contains(t, body, "navigator.clipboard.writeText")
	assert.Contains(t, body, "status-error")
}

// ---------------------------------------------------------------------------
// Public read path
// ---------------------------------------------------------------------------

func TestPublicTariffs(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := do(s, "GET", "/v1/tariffs/full", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tariff struct {
			Title string `json:"title"`
			Plans []struct {
				Name     string   `json:"name"`
				Features []string `json:"features"`
			} `json:"plans"`
		} `json:"tariff"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Полная проверка", resp.Tariff.Title)
	require.Len(t, resp.Tariff.Plans, 2)
	assert.Equal(t, "M", resp.Tariff.Plans[0].Name, "plans follow canonical order")
	assert.Equal(t, []string{"a"}, resp.Tariff.Plans[0].Features)

	assert.Equal(t, http.StatusNotFound, do(s, "GET", "/v1/tariffs/missing", "").Code)
}

func TestHealthScores(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := do(s, "GET", "/v1/health-scores", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Доля оценок А и В")
}

func TestMissingDocumentsStillServe(t *testing.T) {
	cfg := testConfig(t)
	cfg.TariffsSource = filepath.Join(t.TempDir(), "absent.json")
	cfg.HealthScoresSource = ""
	s := newTestServer(t, cfg)

	w := do(s, "GET", "/v1/tariffs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)

	assert.Equal(t, http.StatusNotFound, do(s, "GET", "/v1/health-scores", "").Code)

	w = do(s, "POST", "/v1/editor/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"tariffs":[]`)
}

// ---------------------------------------------------------------------------
// Editor through the full middleware chain
// ---------------------------------------------------------------------------

func TestEditorRoundTrip(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := do(s, "POST", "/v1/editor/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var opened struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Tariffs []struct {
			Key   string `json:"key"`
			Plans []struct {
				Key string `json:"key"`
			} `json:"plans"`
		} `json:"tariffs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opened))
	require.Len(t, opened.Tariffs, 2)

	base := "/v1/editor/sessions/" + opened.Session.ID
	full := opened.Tariffs[0]

	w = do(s, "PATCH", base+"/tariffs/"+full.Key+"/plans/"+full.Plans[0].Key,
		`{"price":" 999 ","features":"x\n\n y "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(s, "DELETE", base+"/tariffs/"+opened.Tariffs[1].Key, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(s, "GET", base+"/download", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="tariffs.json"`, w.Header().Get("Content-Disposition"))

	var exported []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
	require.Len(t, exported, 1)
	assert.Equal(t, "full", exported[0]["id"])
	plans := exported[0]["plans"].([]interface{})
	m := plans[0].(map[string]interface{})
	assert.Equal(t, "999", m["price"])
	assert.Equal(t, []interface{}{"x", "y"}, m["features"])

	// the public catalog is untouched by edits
	w = do(s, "GET", "/v1/tariffs/single", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestBodyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxBodyBytes = 64
	s := newTestServer(t, cfg)

	w := do(s, "POST", "/v1/editor/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var opened struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Tariffs []struct {
			Key string `json:"key"`
		} `json:"tariffs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opened))

	w = do(s, "PATCH", "/v1/editor/sessions/"+opened.Session.ID+"/tariffs/"+opened.Tariffs[0].Key,
		`{"title":"`+strings.Repeat("x", 200)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	assert.Equal(t, http.StatusNotFound, do(s, "GET", "/v1/nonexistent", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	do(s, "GET", "/v1/tariffs", "")

	w := do(s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tariffdesk_http_requests_total")
	assert.Contains(t, w.Body.String(), "tariffdesk_catalog_tariffs")
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://app:%2A%2A%2A@db:5432/tariffs", maskDSN("postgres://app:secret@db:5432/tariffs"))
	assert.Equal(t, "***", maskDSN("://bad"))
}
