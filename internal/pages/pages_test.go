package pages

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteParked(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Operator: "boz.dev", CacheMaxAge: DefaultCacheMaxAge})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://bozza.ai/", nil)
	require.NoError(t, p.WriteParked(rec, req, "bozza.ai"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	require.Equal(t, "boz.dev", rec.Header().Get(DefaultOperatorHeader))
	require.Contains(t, rec.Body.String(), "<h1>bozza.ai</h1>")
	require.Contains(t, rec.Body.String(), "Managed by boz.dev")
}

func TestParkedEscapesHost(t *testing.T) {
	t.Parallel()

	p, err := New(Config{})
	require.NoError(t, err)

	body, err := p.RenderParked(`<script>alert(1)</script>`)
	require.NoError(t, err)
	require.NotContains(t, string(body), "<script>alert(1)</script>")
	require.Contains(t, string(body), "&lt;script&gt;")
	require.NotContains(t, string(body), "Managed by")
}

func TestHeadOmitsBody(t *testing.T) {
	t.Parallel()

	p, err := New(Config{OperatorHeader: "X-Owner", Operator: "ops", CacheMaxAge: 60})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, p.WriteParked(rec, httptest.NewRequest(http.MethodHead, "/", nil), "boz.dev"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
	require.Equal(t, "ops", rec.Header().Get("X-Owner"))
	require.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	require.NoError(t, p.WriteDashboard(rec, httptest.NewRequest(http.MethodHead, "/admin", nil)))
	require.Empty(t, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("Content-Length"))
}

func TestWriteDashboard(t *testing.T) {
	t.Parallel()

	p, err := New(Config{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, p.WriteDashboard(rec, httptest.NewRequest(http.MethodGet, "/admin", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `data-logs="/admin/logs"`)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	custom, err := New(Config{LogsPath: "/ops/visitors"})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	require.NoError(t, custom.WriteDashboard(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil)))
	require.Contains(t, rec.Body.String(), `data-logs="/ops/visitors"`)
}
