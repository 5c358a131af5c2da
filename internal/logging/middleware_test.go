package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger_InjectsLogger(t *testing.T) {
	var got *Logger
	h := RequestLogger(NewDiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetLoggerFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NotNil(t, got)
	assert.NotSame(t, fallbackLogger, got)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestGetLoggerFromContext_Fallback(t *testing.T) {
	assert.Same(t, fallbackLogger, GetLoggerFromContext(context.Background()))
}

func TestWithContext_RoundTrip(t *testing.T) {
	l := NewDiscardLogger()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, GetLoggerFromContext(ctx))
}
