package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		assert.NoError(t, err)
	})
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		requestMethod  string
		expectedOrigin string
	}{
		{"wildcard echoes origin", []string{"*"}, "https://example.com", http.MethodGet, "https://example.com"},
		{"wildcard without origin", []string{"*"}, "", http.MethodGet, "*"},
		{"listed origin", []string{"https://a.com", "https://b.com"}, "https://b.com", http.MethodGet, "https://b.com"},
		{"unlisted origin", []string{"https://a.com"}, "https://evil.com", http.MethodGet, ""},
		{"empty list", []string{}, "https://a.com", http.MethodGet, ""},
		{"preflight", []string{"https://a.com"}, "https://a.com", http.MethodOptions, "https://a.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := CORSMiddleware(tt.allowedOrigins)(okHandler(t))

			req := httptest.NewRequest(tt.requestMethod, "/test", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, tt.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.expectedOrigin != "" {
				require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
				require.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
				require.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			}

			require.Equal(t, http.StatusOK, w.Code)
			if tt.requestMethod == http.MethodOptions {
				require.Empty(t, w.Body.String())
			} else {
				require.Equal(t, "OK", w.Body.String())
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusNotFound, http.StatusInternalServerError} {
		h := LoggingMiddleware(logger.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))
		require.Equal(t, status, w.Code)
	}
}

func TestResponseWriter(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusBadRequest)

	require.Equal(t, http.StatusCreated, rw.statusCode)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	rw = &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	_, err := rw.Write([]byte("implicit"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rw.statusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	for _, v := range []any{"something went wrong", assert.AnError, 42} {
		h := RecoveryMiddleware(logger.NewNopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(v)
		}))

		w := httptest.NewRecorder()
		require.NotPanics(t, func() {
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		})
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, "Internal Server Error\n", w.Body.String())
	}
}

func TestMiddlewareChaining(t *testing.T) {
	t.Parallel()

	log := logger.NewNopLogger()
	h := RecoveryMiddleware(log)(LoggingMiddleware(log)(CORSMiddleware([]string{"*"})(okHandler(t))))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
	require.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
