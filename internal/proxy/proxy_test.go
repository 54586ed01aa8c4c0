package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 受け取ったパスとクエリをそのまま返す上流
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if r.URL.Path == "/api/v1/products/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"product not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  r.URL.RawQuery,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestNew_InvalidUpstream(t *testing.T) {
	_, err := New(config.ProxyConfig{ProductsUpstream: "not a url"}, nil)
	require.Error(t, err)
}

func TestProxy_Health(t *testing.T) {
	e, err := New(config.ProxyConfig{ProductsUpstream: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"simple-proxy"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestProxy_Preflight(t *testing.T) {
	e, err := New(config.ProxyConfig{ProductsUpstream: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)

	rec := serve(e, http.MethodOptions, "/api/products")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodDelete)
}

func TestProxy_ForwardsProducts(t *testing.T) {
	up := newUpstream(t)
	e, err := New(config.ProxyConfig{ProductsUpstream: up.URL}, nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		method    string
		target    string
		wantPath  string
		wantQuery string
	}{
		{name: "list", method: http.MethodGet, target: "/api/products", wantPath: "/api/v1/products"},
		{name: "query", method: http.MethodGet, target: "/api/products?page=2&limit=5", wantPath: "/api/v1/products", wantQuery: "page=2&limit=5"},
		{name: "detail", method: http.MethodGet, target: "/api/products/42", wantPath: "/api/v1/products/42"},
		{name: "post", method: http.MethodPost, target: "/api/products", wantPath: "/api/v1/products"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.method, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.method, got["method"])
			assert.Equal(t, tt.wantPath, got["path"])
			assert.Equal(t, tt.wantQuery, got["query"])
		})
	}
}

func TestProxy_PassesUpstreamErrors(t *testing.T) {
	up := newUpstream(t)
	e, err := New(config.ProxyConfig{ProductsUpstream: up.URL}, nil)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/api/products/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"product not found"}`, rec.Body.String())
}

func TestProxy_UpstreamDown(t *testing.T) {
	up := httptest.NewServer(http.NotFoundHandler())
	url := up.URL
	up.Close()

	e, err := New(config.ProxyConfig{ProductsUpstream: url}, nil)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/api/products")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Proxy error", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestProxy_OtherPathsNotForwarded(t *testing.T) {
	up := newUpstream(t)
	e, err := New(config.ProxyConfig{ProductsUpstream: up.URL}, nil)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/api/orders")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
