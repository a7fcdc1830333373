package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serveCORS(cfg CORSConfig, req *http.Request) (*httptest.ResponseRecorder, bool) {
	reached := false
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, reached
}

func corsRequest(method, origin string, preflight bool) *http.Request {
	req := httptest.NewRequest(method, "/console/products", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	return req
}

func TestCORS_AllowOrigin(t *testing.T) {
	listed := CORSConfig{AllowedOrigins: []string{"https://console.example.com", "https://admin.example.com"}}
	wildcard := CORSConfig{AllowedOrigins: []string{"*"}}

	tests := []struct {
		name   string
		cfg    CORSConfig
		origin string
		want   string
	}{
		{"listed origin is echoed", listed, "https://admin.example.com", "https://admin.example.com"},
		{"unlisted origin gets nothing", listed, "https://evil.example.com", ""},
		{"wildcard", wildcard, "https://anywhere.dev", "*"},
		{"no origin header", wildcard, "", ""},
		{"empty config", CORSConfig{}, "https://console.example.com", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, reached := serveCORS(tc.cfg, corsRequest(http.MethodGet, tc.origin, false))
			assert.True(t, reached)
			assert.Equal(t, tc.want, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			if tc.want != "" {
				assert.Equal(t, HeaderCorrelationID, rec.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://console.example.com"}, MaxAge: 10 * time.Minute}

	rec, reached := serveCORS(cfg, corsRequest(http.MethodOptions, "https://console.example.com", true))
	assert.False(t, reached, "preflight must not reach the handler")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), HeaderSessionID)
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightDefaultsMaxAge(t *testing.T) {
	rec, _ := serveCORS(CORSConfig{AllowedOrigins: []string{"*"}}, corsRequest(http.MethodOptions, "https://a.dev", true))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_OptionsWithoutPreflightHeaders(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"*"}}

	_, reached := serveCORS(cfg, corsRequest(http.MethodOptions, "https://a.dev", false))
	assert.True(t, reached, "plain OPTIONS is an ordinary request")

	rec, reached := serveCORS(CORSConfig{}, corsRequest(http.MethodOptions, "https://a.dev", true))
	assert.True(t, reached, "preflight from a disallowed origin passes through")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}
