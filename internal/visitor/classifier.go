package visitor

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultIPHeader is the trusted connecting-IP header set by the edge.
const DefaultIPHeader = "cf-connecting-ip"

var (
	mobilePattern = regexp.MustCompile(`(?i)Mobile|Android|iPhone|iPad|iPod`)
	botPattern    = regexp.MustCompile(`(?i)bot|crawler|spider|scraper`)
)

type browserRule struct {
	name    string
	match   func(ua string) bool
	version *regexp.Regexp
}

// Order matters: Chrome UAs also carry Safari/, and legacy Edge UAs carry Chrome/.
var browserRules = []browserRule{
	{
		name:    "Chrome",
		match:   containsAll("Chrome/"),
		version: regexp.MustCompile(`Chrome/([\d.]+)`),
	},
	{
		name:    "Firefox",
		match:   containsAll("Firefox/"),
		version: regexp.MustCompile(`Firefox/([\d.]+)`),
	},
	{
		name: "Safari",
		match: func(ua string) bool {
			return strings.Contains(ua, "Safari/") && !strings.Contains(ua, "Chrome")
		},
		version: regexp.MustCompile(`Version/([\d.]+)`),
	},
	{
		name:    "Edge",
		match:   containsAll("Edge/"),
		version: regexp.MustCompile(`Edge/([\d.]+)`),
	},
}

type osRule struct {
	name  string
	match func(ua string) bool
}

// Android UAs contain Linux, so Android is only reported when Linux is absent.
var osRules = []osRule{
	{name: "Windows", match: containsAny("Windows NT")},
	{name: "macOS", match: containsAny("Mac OS X")},
	{name: "Linux", match: containsAny("Linux")},
	{name: "Android", match: containsAny("Android")},
	{name: "iOS", match: containsAny("iOS", "iPhone", "iPad")},
}

// Request is the subset of an inbound HTTP request the classifier reads.
type Request struct {
	Method string
	Host   string
	// RawHost is the Host header as received, port and case intact.
	RawHost string
	Path    string
	Query   url.Values
	Proto   string
	Header  http.Header
}

// RequestFrom extracts a Request from an *http.Request.
func RequestFrom(r *http.Request) Request {
	return Request{
		Method:  r.Method,
		Host:    Hostname(r.Host),
		RawHost: r.Host,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Proto:   r.Proto,
		Header:  r.Header,
	}
}

// Hostname lowercases host and strips any port.
func Hostname(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.HasPrefix(host, "[") {
		if end := strings.IndexByte(host, ']'); end != -1 {
			return host[1:end]
		}
		return host
	}
	if i := strings.LastIndexByte(host, ':'); i != -1 && strings.Count(host, ":") == 1 {
		return host[:i]
	}
	return host
}

// Classifier turns requests into visitor records.
type Classifier struct {
	ipHeader string
}

// NewClassifier returns a Classifier reading the client IP from ipHeader.
func NewClassifier(ipHeader string) Classifier {
	if ipHeader == "" {
		ipHeader = DefaultIPHeader
	}
	return Classifier{ipHeader: ipHeader}
}

// ClientIP returns the trusted connecting IP, or "" when the header is absent.
func (c Classifier) ClientIP(h http.Header) string {
	return strings.TrimSpace(h.Get(c.ipHeader))
}

// Classify builds the Record for req captured at now. geo may be nil.
func (c Classifier) Classify(req Request, geo *Geo, now time.Time) Record {
	if geo == nil {
		geo = &Geo{}
	}
	h := req.Header
	if h == nil {
		h = http.Header{}
	}
	ua := h.Get("User-Agent")
	isMobile := mobilePattern.MatchString(ua)
	browser, version := detectBrowser(ua)

	rec := Record{
		Timestamp: now.UTC(),
		Domain:    req.Host,
		Path:      req.Path,
		Method:    req.Method,
		IP:        c.ClientIP(h),

		Country:   optional(geo.Country),
		City:      optional(geo.City),
		Region:    optional(geo.Region),
		Timezone:  optional(geo.Timezone),
		Latitude:  optional(geo.Latitude),
		Longitude: optional(geo.Longitude),
		ASN:       optional(geo.ASN),

		UserAgent:      ua,
		Browser:        optional(browser),
		BrowserVersion: optional(version),
		OS:             optional(detectOS(ua)),
		DeviceType:     deviceType(isMobile),
		IsMobile:       isMobile,
		IsBot:          botPattern.MatchString(ua),

		Referer:        optional(h.Get("Referer")),
		AcceptLanguage: optional(h.Get("Accept-Language")),
		AcceptEncoding: optional(h.Get("Accept-Encoding")),

		Headers:     captureHeaders(h, req.RawHost),
		QueryParams: captureQuery(req.Query),

		TLSVersion:    optional(geo.TLSVersion),
		HTTPProtocol:  optional(firstNonEmpty(h.Get("cf-http-version"), req.Proto)),
		CloudflareRay: optional(h.Get("cf-ray")),
	}
	return rec
}

func detectBrowser(ua string) (string, string) {
	for _, rule := range browserRules {
		if !rule.match(ua) {
			continue
		}
		var version string
		if m := rule.version.FindStringSubmatch(ua); len(m) == 2 {
			version = m[1]
		}
		return rule.name, version
	}
	return "", ""
}

func detectOS(ua string) string {
	for _, rule := range osRules {
		if rule.match(ua) {
			return rule.name
		}
	}
	return ""
}

func deviceType(isMobile bool) string {
	if isMobile {
		return DeviceMobile
	}
	return DeviceDesktop
}

// captureHeaders serializes headers as a JSON object keyed by lowercase name,
// with keys in sorted order.
// Repeated values are joined with ", ". net/http lifts Host out of the header
// map, so rawHost is put back under "host".
func captureHeaders(h http.Header, rawHost string) string {
	out := make(map[string]string, len(h)+1)
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	if _, ok := out["host"]; !ok && rawHost != "" {
		out["host"] = rawHost
	}
	return marshalSorted(out)
}

// captureQuery returns nil for an empty query. For repeated keys the last value wins.
func captureQuery(q url.Values) *string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for key, values := range q {
		if len(values) == 0 {
			out[key] = ""
			continue
		}
		out[key] = values[len(values)-1]
	}
	s := marshalSorted(out)
	return &s
}

func marshalSorted(m map[string]string) string {
	encoded, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func containsAll(subs ...string) func(string) bool {
	return func(ua string) bool {
		for _, s := range subs {
			if !strings.Contains(ua, s) {
				return false
			}
		}
		return true
	}
}

func containsAny(subs ...string) func(string) bool {
	return func(ua string) bool {
		for _, s := range subs {
			if strings.Contains(ua, s) {
				return true
			}
		}
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
