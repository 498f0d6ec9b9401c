package visitor

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36"
	uaSafariMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.2 Safari/605.1.15"
	uaFirefoxLinux = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaIPhone       = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
	uaLegacyEdge = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/70.0.3538.102 Safari/537.36 Edge/18.19582"
	uaGooglebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

var fixedNow = time.Date(2024, 3, 9, 12, 30, 45, 123000000, time.UTC)

func classifyUA(t *testing.T, ua string) Record {
	t.Helper()
	h := http.Header{}
	if ua != "" {
		h.Set("User-Agent", ua)
	}
	return NewClassifier("").Classify(Request{
		Method: http.MethodGet,
		Host:   "boz.dev",
		Path:   "/",
		Header: h,
	}, nil, fixedNow)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func TestClassifyBrowserAndOS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ua          string
		wantBrowser string
		wantVersion string
		wantOS      string
	}{
		{"chrome windows", uaChromeWindows, "Chrome", "120.0.6099.109", "Windows"},
		{"safari mac uses Version token", uaSafariMac, "Safari", "17.2", "macOS"},
		{"firefox linux", uaFirefoxLinux, "Firefox", "121.0", "Linux"},
		{"iphone safari", uaIPhone, "Safari", "17.2", "macOS"},
		{"legacy edge loses to chrome", uaLegacyEdge, "Chrome", "70.0.3538.102", "Windows"},
		{"edge only token", "Something Edge/18.1", "Edge", "18.1", ""},
		{"bare chrome version", "Chrome/12.0", "Chrome", "12.0", ""},
		{"chrome without digits", "Chrome/abc", "Chrome", "", ""},
		{"safari without Version", "Safari/604.1", "Safari", "", ""},
		{"android linux precedence", "Mozilla/5.0 (Linux; Android 14) Mobile", "", "", "Linux"},
		{"ipad without mac marker", "Mozilla/5.0 (iPad; CPU OS 17_0)", "", "", "iOS"},
		{"unknown agent", "curl/8.4.0", "", "", ""},
		{"empty agent", "", "", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := classifyUA(t, tc.ua)
			require.Equal(t, tc.wantBrowser, deref(rec.Browser))
			require.Equal(t, tc.wantVersion, deref(rec.BrowserVersion))
			require.Equal(t, tc.wantOS, deref(rec.OS))
			if tc.wantBrowser == "" {
				require.Nil(t, rec.Browser)
			}
		})
	}
}

func TestClassifyChromePrecedenceOverSafari(t *testing.T) {
	t.Parallel()

	for _, ua := range []string{
		uaChromeWindows,
		"Safari/537.36 Chrome/99.0",
		"Chrome/1 Safari/2 Version/3",
	} {
		rec := classifyUA(t, ua)
		require.NotEqual(t, "Safari", deref(rec.Browser), ua)
	}
}

func TestClassifyMobileAndBot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ua         string
		wantMobile bool
		wantBot    bool
	}{
		{uaIPhone, true, false},
		{"Mozilla/5.0 (iPod touch)", true, false},
		{"some ANDROID device", true, false},
		{"mobile lowercase", true, false},
		{uaChromeWindows, false, false},
		{uaGooglebot, false, true},
		{"AhrefsBot/7.0", false, true},
		{"Web CRAWLER 1.0", false, true},
		{"my-spider", false, true},
		{"price-scraper Mobile", true, true},
	}

	for _, tc := range tests {
		rec := classifyUA(t, tc.ua)
		require.Equal(t, tc.wantMobile, rec.IsMobile, tc.ua)
		require.Equal(t, tc.wantBot, rec.IsBot, tc.ua)
		if rec.IsMobile {
			require.Equal(t, DeviceMobile, rec.DeviceType, tc.ua)
		} else {
			require.Equal(t, DeviceDesktop, rec.DeviceType, tc.ua)
		}
	}
}

func TestClassifyIPhoneIsExactlyMobile(t *testing.T) {
	t.Parallel()

	rec := classifyUA(t, uaIPhone)
	require.True(t, rec.IsMobile)
	require.Equal(t, "Mobile", rec.DeviceType)
}

func TestClassifyQueryParams(t *testing.T) {
	t.Parallel()

	c := NewClassifier("")

	empty := c.Classify(Request{Host: "boz.dev", Path: "/", Query: url.Values{}}, nil, fixedNow)
	require.Nil(t, empty.QueryParams)

	nilQuery := c.Classify(Request{Host: "boz.dev", Path: "/"}, nil, fixedNow)
	require.Nil(t, nilQuery.QueryParams)

	withQuery := c.Classify(Request{
		Host:  "boz.dev",
		Path:  "/",
		Query: url.Values{"utm": {"a", "b"}, "q": {"x y"}},
	}, nil, fixedNow)
	require.NotNil(t, withQuery.QueryParams)
	require.JSONEq(t, `{"q":"x y","utm":"b"}`, *withQuery.QueryParams)
}

func TestClassifyCapturesHeadersAndEdgeFields(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("User-Agent", uaChromeWindows)
	h.Set("CF-Connecting-IP", " 203.0.113.7 ")
	h.Set("Referer", "https://example.com/")
	h.Set("Accept-Language", "en-AU")
	h.Set("Accept-Encoding", "gzip, br")
	h.Set("CF-Ray", "8a1b2c3d4e5f-SYD")
	h.Set("CF-HTTP-Version", "HTTP/2")
	h.Add("X-Multi", "one")
	h.Add("X-Multi", "two")

	rec := NewClassifier("").Classify(Request{
		Method:  http.MethodPost,
		Host:    "bozza.ai",
		RawHost: "Bozza.AI:443",
		Path:    "/contact",
		Proto:   "HTTP/1.1",
		Header:  h,
	}, &Geo{Country: "AU", City: "Sydney", ASN: "13335", TLSVersion: "TLSv1.3"}, fixedNow)

	require.Equal(t, "203.0.113.7", rec.IP)
	require.Equal(t, "bozza.ai", rec.Domain)
	require.Equal(t, "/contact", rec.Path)
	require.Equal(t, http.MethodPost, rec.Method)
	require.Equal(t, "https://example.com/", deref(rec.Referer))
	require.Equal(t, "en-AU", deref(rec.AcceptLanguage))
	require.Equal(t, "gzip, br", deref(rec.AcceptEncoding))
	require.Equal(t, "8a1b2c3d4e5f-SYD", deref(rec.CloudflareRay))
	require.Equal(t, "HTTP/2", deref(rec.HTTPProtocol))
	require.Equal(t, "AU", deref(rec.Country))
	require.Equal(t, "Sydney", deref(rec.City))
	require.Nil(t, rec.Region)
	require.Equal(t, "13335", deref(rec.ASN))
	require.Equal(t, "TLSv1.3", deref(rec.TLSVersion))
	require.Equal(t, "2024-03-09T12:30:45.123Z", rec.TimestampString())
	require.JSONEq(t, `{
		"user-agent": "`+uaChromeWindows+`",
		"cf-connecting-ip": " 203.0.113.7 ",
		"referer": "https://example.com/",
		"accept-language": "en-AU",
		"accept-encoding": "gzip, br",
		"cf-ray": "8a1b2c3d4e5f-SYD",
		"cf-http-version": "HTTP/2",
		"x-multi": "one, two",
		"host": "Bozza.AI:443"
	}`, rec.Headers)
}

func TestClassifyMissingSignalsAreUnset(t *testing.T) {
	t.Parallel()

	rec := NewClassifier("").Classify(Request{Host: "e-flux.au", Path: "/"}, nil, fixedNow)

	require.Empty(t, rec.IP)
	require.Empty(t, rec.UserAgent)
	require.Nil(t, rec.Referer)
	require.Nil(t, rec.AcceptLanguage)
	require.Nil(t, rec.AcceptEncoding)
	require.Nil(t, rec.CloudflareRay)
	require.Nil(t, rec.HTTPProtocol)
	require.Nil(t, rec.TLSVersion)
	require.Nil(t, rec.Country)
	require.Equal(t, "{}", rec.Headers)
	require.Equal(t, DeviceDesktop, rec.DeviceType)
}

func TestClassifyCustomIPHeader(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("X-Real-IP", "198.51.100.4")
	h.Set("CF-Connecting-IP", "203.0.113.9")

	rec := NewClassifier("X-Real-IP").Classify(Request{Host: "boz.dev", Header: h}, nil, fixedNow)
	require.Equal(t, "198.51.100.4", rec.IP)
}

func TestRequestFrom(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "http://Boz.Dev:8443/hello?x=1", nil)
	r.Header.Set("User-Agent", uaFirefoxLinux)

	req := RequestFrom(r)
	require.Equal(t, "boz.dev", req.Host)
	require.Equal(t, "Boz.Dev:8443", req.RawHost)
	require.Equal(t, "/hello", req.Path)
	require.Equal(t, "1", req.Query.Get("x"))
	require.Equal(t, http.MethodGet, req.Method)
	require.Equal(t, "HTTP/1.1", req.Proto)
}

func TestClassifyHeadersIncludeHost(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "http://boz.dev/", nil)
	r.Header.Set("User-Agent", "x")
	require.Empty(t, r.Header.Get("Host"))

	rec := NewClassifier("").Classify(RequestFrom(r), nil, fixedNow)
	require.JSONEq(t, `{"user-agent":"x","host":"boz.dev"}`, rec.Headers)
}

func TestHostname(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"boz.dev":          "boz.dev",
		"MAIL.bozza.au":    "mail.bozza.au",
		"boz.dev:8080":     "boz.dev",
		"[2001:db8::1]:80": "2001:db8::1",
		"2001:db8::1":      "2001:db8::1",
		"":                 "",
	}
	for in, want := range tests {
		require.Equal(t, want, Hostname(in), in)
	}
}

func TestGeoFromHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("CF-IPCountry", "XX")
	h.Set("CF-IPCity", "Melbourne")
	h.Set("CF-IPLatitude", "-37.81")
	h.Set("CF-IPLongitude", "144.96")

	g := GeoFromHeaders(h, &tls.ConnectionState{Version: tls.VersionTLS12})
	require.Equal(t, "XX", g.Country)
	require.Equal(t, "Melbourne", g.City)
	require.Equal(t, "-37.81", g.Latitude)
	require.Equal(t, "144.96", g.Longitude)
	require.Equal(t, "TLSv1.2", g.TLSVersion)

	h.Set("CF-TLS-Version", "TLSv1.3")
	require.Equal(t, "TLSv1.3", GeoFromHeaders(h, nil).TLSVersion)
	require.Empty(t, GeoFromHeaders(http.Header{}, nil).TLSVersion)
}
