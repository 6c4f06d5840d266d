package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/logger"
	"folio/internal/store"
)

// TestConfig configures a TestSuite
type TestConfig struct {
	LogLevel logger.LogLevel
	TempDir  string
}

// DefaultTestConfig keeps test output quiet
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		LogLevel: logger.LevelError,
	}
}

// TestSuite bundles the process-local dependencies most tests need
type TestSuite struct {
	T          *testing.T
	Config     *TestConfig
	Documents  *store.MemoryStore
	Identities *store.MemoryIdentityStore
	Logger     logger.Logger
	TempDir    string
	Cleanup    []func()
}

// NewTestSuite creates a suite with fresh memory stores and installs a
// quiet global logger for the duration of the test.
func NewTestSuite(t *testing.T, config *TestConfig) *TestSuite {
	if config == nil {
		config = DefaultTestConfig()
	}

	tempDir := config.TempDir
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "folio_test_*")
		require.NoError(t, err)
		tempDir = dir
	}

	testLogger := logger.NewLoggerWithWriter(logger.Config{
		Level:  config.LogLevel,
		Format: logger.FormatText,
	}, io.Discard)

	previous := logger.GetGlobalLogger()
	logger.SetGlobalLogger(testLogger)

	suite := &TestSuite{
		T:          t,
		Config:     config,
		Documents:  store.NewMemoryStore(),
		Identities: store.NewMemoryIdentityStore(),
		Logger:     testLogger,
		TempDir:    tempDir,
	}

	suite.AddCleanup(func() {
		os.RemoveAll(tempDir)
	})
	suite.AddCleanup(func() {
		logger.SetGlobalLogger(previous)
	})

	t.Cleanup(suite.TearDown)
	return suite
}

// AddCleanup registers a function run by TearDown in reverse order
func (s *TestSuite) AddCleanup(cleanup func()) {
	s.Cleanup = append(s.Cleanup, cleanup)
}

// TearDown runs the cleanups once
func (s *TestSuite) TearDown() {
	for i := len(s.Cleanup) - 1; i >= 0; i-- {
		s.Cleanup[i]()
	}
	s.Cleanup = nil
}

// CreateTempFile writes content under the suite's temp dir
func (s *TestSuite) CreateTempFile(name, content string) string {
	filePath := filepath.Join(s.TempDir, name)
	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(s.T, err)
	return filePath
}

// HTTPTestHelper drives an http.Handler with httptest
type HTTPTestHelper struct {
	Handler http.Handler
	Suite   *TestSuite
	headers map[string]string
}

// NewHTTPTestHelper creates a helper for handler
func NewHTTPTestHelper(suite *TestSuite, handler http.Handler) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{
		Handler: handler,
		Suite:   suite,
		headers: map[string]string{},
	}
}

// WithBearer returns a copy that sends the token on every request
func (h *HTTPTestHelper) WithBearer(token string) *HTTPTestHelper {
	headers := make(map[string]string, len(h.headers)+1)
	for k, v := range h.headers {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + token
	return &HTTPTestHelper{Handler: h.Handler, Suite: h.Suite, headers: headers}
}

func (h *HTTPTestHelper) GET(path string) *HTTPResponse {
	return h.Request(http.MethodGet, path, nil)
}

func (h *HTTPTestHelper) POST(path string, body interface{}) *HTTPResponse {
	return h.Request(http.MethodPost, path, body)
}

func (h *HTTPTestHelper) PUT(path string, body interface{}) *HTTPResponse {
	return h.Request(http.MethodPut, path, body)
}

func (h *HTTPTestHelper) DELETE(path string) *HTTPResponse {
	return h.Request(http.MethodDelete, path, nil)
}

// Request sends body as JSON. A string body is sent verbatim.
func (h *HTTPTestHelper) Request(method, path string, body interface{}) *HTTPResponse {
	var bodyReader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		bodyBytes, err := json.Marshal(body)
		require.NoError(h.Suite.T, err)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.do(req)
}

// PostForm sends an url-encoded form
func (h *HTTPTestHelper) PostForm(path string, form url.Values) *HTTPResponse {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *HTTPTestHelper) do(req *http.Request) *HTTPResponse {
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	h.Handler.ServeHTTP(w, req)

	return &HTTPResponse{
		StatusCode: w.Code,
		Body:       w.Body.Bytes(),
		Headers:    w.Header(),
		suite:      h.Suite,
	}
}

// HTTPResponse is a recorded response
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	suite      *TestSuite
}

// AssertStatus fails the test unless the status matches
func (r *HTTPResponse) AssertStatus(expectedStatus int) *HTTPResponse {
	assert.Equal(r.suite.T, expectedStatus, r.StatusCode, string(r.Body))
	return r
}

// AssertErrorCode checks the error envelope's code
func (r *HTTPResponse) AssertErrorCode(code string) *HTTPResponse {
	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(r.suite.T, json.Unmarshal(r.Body, &envelope), string(r.Body))
	assert.False(r.suite.T, envelope.Success)
	assert.Equal(r.suite.T, code, envelope.Error.Code)
	return r
}

// AssertContains checks the raw body
func (r *HTTPResponse) AssertContains(substring string) *HTTPResponse {
	assert.Contains(r.suite.T, string(r.Body), substring)
	return r
}

// GetJSON decodes the body into target
func (r *HTTPResponse) GetJSON(target interface{}) error {
	return json.Unmarshal(r.Body, target)
}

// JSONMap decodes an object body
func (r *HTTPResponse) JSONMap() map[string]interface{} {
	var out map[string]interface{}
	require.NoError(r.suite.T, json.Unmarshal(r.Body, &out), string(r.Body))
	return out
}

// MockData generates entity payloads
type MockData struct {
	rand *rand.Rand
}

func NewMockData() *MockData {
	return &MockData{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockData) RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[m.rand.Intn(len(charset))]
	}
	return string(b)
}

func (m *MockData) RandomFloat(min, max float64) float64 {
	return min + m.rand.Float64()*(max-min)
}

func (m *MockData) RandomChoice(choices []string) string {
	return choices[m.rand.Intn(len(choices))]
}

// GenerateAsset returns a valid asset body
func (m *MockData) GenerateAsset() map[string]interface{} {
	return map[string]interface{}{
		"symbol": m.RandomChoice([]string{"AAPL", "IBM", "MSFT", "GOOG"}),
		"price":  m.RandomFloat(1, 500),
		"volume": m.RandomFloat(1, 1000),
		"amount": m.RandomFloat(1, 100),
	}
}

// GenerateOrder returns a valid order body
func (m *MockData) GenerateOrder() map[string]interface{} {
	return map[string]interface{}{
		"order_type": m.RandomChoice([]string{"buy", "sell"}),
		"amount":     m.RandomFloat(1, 100),
	}
}

// TimeoutContext returns a context that expires after timeout
func TimeoutContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// Eventually polls condition until it holds or timeout passes
func Eventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	ctx, cancel := TimeoutContext(timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
		}
	}
}

// SetEnv sets an environment variable for the duration of the test
func SetEnv(t *testing.T, key, value string) {
	oldValue, existed := os.LookupEnv(key)
	os.Setenv(key, value)

	t.Cleanup(func() {
		if !existed {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, oldValue)
		}
	})
}
