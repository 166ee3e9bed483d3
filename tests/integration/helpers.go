package integration

import (
	"fmt"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"lark/internal/api"
	"lark/internal/config"
)

var (
	serverOnce sync.Once
	serverURL  string
)

// ServerURL boots one API process (in-memory store backend) for the whole
// package and returns its base URL. NATS, Valkey and Elasticsearch are not
// expected to be running; the server degrades to disabled for each.
func ServerURL(t *testing.T) string {
	t.Helper()
	serverOnce.Do(func() {
		os.Setenv("STORE_BACKEND", "memory")
		os.Setenv("GIN_MODE", "test")

		cfg := config.Load()
		server := api.NewServer(cfg)
		ts := httptest.NewServer(server.GetRouter())
		serverURL = ts.URL
	})
	return serverURL
}

// LogTestStep logs a test step with formatting
func LogTestStep(t *testing.T, format string, args ...interface{}) {
	t.Logf("STEP: %s", fmt.Sprintf(format, args...))
}

// LogTestResult logs a test result with formatting
func LogTestResult(t *testing.T, format string, args ...interface{}) {
	t.Logf("RESULT: %s", fmt.Sprintf(format, args...))
}

// UniqueEmail returns a unique buyer email for a test
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, uniqueCounter())
}

var (
	counterMu sync.Mutex
	counter   int
)

func uniqueCounter() int {
	counterMu.Lock()
	defer counterMu.Unlock()
	counter++
	return counter
}
