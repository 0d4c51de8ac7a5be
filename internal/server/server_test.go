package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/config"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/handler"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/provider"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func testConfig() *config.Config {
	return &config.Config{
		Port:         0,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		CORSOrigins:  []string{"http://localhost:3000"},
		LogLevel:     "info",
	}
}

func TestRoutes(t *testing.T) {
	registry, err := repository.NewFileRepository(t.TempDir())
	require.NoError(t, err)

	h := handler.NewInvoiceHandler(provider.NewSet(), registry, handler.Settings{})
	s := NewServer(testConfig(), h)

	tests := []struct {
		path string
		code int
	}{
		{path: "/health", code: http.StatusOK},
		{path: "/", code: http.StatusOK},
		{path: "/metrics", code: http.StatusOK},
		{path: "/api-docs", code: http.StatusFound},
		{path: "/api/providers", code: http.StatusOK},
		{path: "/api/invoices", code: http.StatusOK},
		{path: "/api/check-2fa", code: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.GetRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRunClosesResourcesOnShutdown(t *testing.T) {
	s := NewServer(testConfig(), nil)

	var order []string
	s.OnShutdown(
		closerFunc(func() error { order = append(order, "providers"); return errors.New("browser gone") }),
		closerFunc(func() error { order = append(order, "registry"); return nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, []string{"providers", "registry"}, order)
}
