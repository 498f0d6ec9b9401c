package visitor

import (
	"crypto/tls"
	"net/http"
	"strings"
)

// Geo is the platform-supplied request context. Empty fields are unset.
type Geo struct {
	Country    string
	City       string
	Region     string
	Timezone   string
	Latitude   string
	Longitude  string
	ASN        string
	TLSVersion string
}

// Edge headers carrying visitor location, as added by the CDN's location transform.
const (
	headerCountry    = "cf-ipcountry"
	headerCity       = "cf-ipcity"
	headerRegion     = "cf-region"
	headerTimezone   = "cf-timezone"
	headerLatitude   = "cf-iplatitude"
	headerLongitude  = "cf-iplongitude"
	headerASN        = "cf-asn"
	headerTLSVersion = "cf-tls-version"
)

// GeoFromHeaders reads the trusted edge headers and the connection TLS state.
// cs may be nil for plaintext connections.
func GeoFromHeaders(h http.Header, cs *tls.ConnectionState) *Geo {
	g := &Geo{
		Country:    strings.TrimSpace(h.Get(headerCountry)),
		City:       strings.TrimSpace(h.Get(headerCity)),
		Region:     strings.TrimSpace(h.Get(headerRegion)),
		Timezone:   strings.TrimSpace(h.Get(headerTimezone)),
		Latitude:   strings.TrimSpace(h.Get(headerLatitude)),
		Longitude:  strings.TrimSpace(h.Get(headerLongitude)),
		ASN:        strings.TrimSpace(h.Get(headerASN)),
		TLSVersion: strings.TrimSpace(h.Get(headerTLSVersion)),
	}
	if g.TLSVersion == "" && cs != nil {
		g.TLSVersion = tlsVersionName(cs.Version)
	}
	return g
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLSv1"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return ""
	}
}
