package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestForwarderRelaysVerbatim(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Origin-Host", r.Host)
		w.Header().Set("X-Origin-Path", r.URL.RequestURI())
		w.Header().Set("X-Origin-Custom", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(r.Method + ":" + string(body)))
	}))
	defer origin.Close()

	f, err := New(map[string]string{"Mail.Bozza.au": origin.URL}, time.Second, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, []string{"mail.bozza.au"}, f.Hosts())

	req := httptest.NewRequest(http.MethodPost, "http://mail.bozza.au/inbox?folder=spam", strings.NewReader("payload"))
	req.Header.Set("X-Custom", "kept")
	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "POST:payload", rec.Body.String())
	require.Equal(t, "mail.bozza.au", rec.Header().Get("X-Origin-Host"))
	require.Equal(t, "/inbox?folder=spam", rec.Header().Get("X-Origin-Path"))
	require.Equal(t, "kept", rec.Header().Get("X-Origin-Custom"))
}

func TestForwarderOriginDown(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.NotFoundHandler())
	url := origin.URL
	origin.Close()

	f, err := New(map[string]string{"admin.bozza.au": url}, time.Second, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://admin.bozza.au/", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestForwarderUnknownHost(t *testing.T) {
	t.Parallel()

	f, err := New(map[string]string{"mail.bozza.au": "https://mail.bozza.au"}, 0, nil)
	require.NoError(t, err)

	_, err = f.Origin("boz.dev")
	require.ErrorIs(t, err, ErrUnknownHost)

	u, err := f.Origin("MAIL.bozza.au:443")
	require.NoError(t, err)
	require.Equal(t, "mail.bozza.au", u.Host)

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://boz.dev/", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNewRejectsBadOrigins(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"mail.bozza.au", "ftp://mail.bozza.au", "http://", "://bad"} {
		_, err := New(map[string]string{"mail.bozza.au": raw}, time.Second, nil)
		require.Error(t, err, raw)
	}
}
