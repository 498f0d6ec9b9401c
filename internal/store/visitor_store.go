package store

import (
	"context"
	"errors"

	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// ErrStoreUnavailable signals that no backing store is reachable.
var ErrStoreUnavailable = errors.New("visitor store unavailable")

// Default pagination for ListVisitors.
const (
	DefaultLimit  = 100
	DefaultOffset = 0
)

// Columns lists the visitors table columns in select order.
var Columns = []string{
	"id",
	"timestamp",
	"domain",
	"path",
	"method",
	"ip",
	"country",
	"city",
	"region",
	"timezone",
	"latitude",
	"longitude",
	"asn",
	"user_agent",
	"browser",
	"browser_version",
	"os",
	"device_type",
	"is_mobile",
	"is_bot",
	"referer",
	"accept_language",
	"accept_encoding",
	"headers",
	"query_params",
	"tls_version",
	"http_protocol",
	"cloudflare_ray",
}

// Query filters and pages a visitor listing. An empty Domain matches every row.
type Query struct {
	Domain string
	Limit  int
	Offset int
}

// Row is one persisted visitor as returned to admin clients.
// Booleans keep their stored 0/1 form.
type Row struct {
	ID             int64   `json:"id"`
	Timestamp      string  `json:"timestamp"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Method         string  `json:"method"`
	IP             string  `json:"ip"`
	Country        *string `json:"country"`
	City           *string `json:"city"`
	Region         *string `json:"region"`
	Timezone       *string `json:"timezone"`
	Latitude       *string `json:"latitude"`
	Longitude      *string `json:"longitude"`
	ASN            *string `json:"asn"`
	UserAgent      string  `json:"user_agent"`
	Browser        *string `json:"browser"`
	BrowserVersion *string `json:"browser_version"`
	OS             *string `json:"os"`
	DeviceType     *string `json:"device_type"`
	IsMobile       int     `json:"is_mobile"`
	IsBot          int     `json:"is_bot"`
	Referer        *string `json:"referer"`
	AcceptLanguage *string `json:"accept_language"`
	AcceptEncoding *string `json:"accept_encoding"`
	Headers        string  `json:"headers"`
	QueryParams    *string `json:"query_params"`
	TLSVersion     *string `json:"tls_version"`
	HTTPProtocol   *string `json:"http_protocol"`
	CloudflareRay  *string `json:"cloudflare_ray"`
}

// VisitorStore persists visitor records and serves paginated reads.
type VisitorStore interface {
	// InsertVisitor writes exactly one row for rec.
	InsertVisitor(ctx context.Context, rec visitor.Record) error
	// ListVisitors returns rows ordered by timestamp descending.
	ListVisitors(ctx context.Context, q Query) ([]Row, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Close releases underlying resources.
	Close() error
}

// RowFromRecord converts a record into its persisted shape.
func RowFromRecord(id int64, rec visitor.Record) Row {
	deviceType := rec.DeviceType
	return Row{
		ID:             id,
		Timestamp:      rec.TimestampString(),
		Domain:         rec.Domain,
		Path:           rec.Path,
		Method:         rec.Method,
		IP:             rec.IP,
		Country:        rec.Country,
		City:           rec.City,
		Region:         rec.Region,
		Timezone:       rec.Timezone,
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		ASN:            rec.ASN,
		UserAgent:      rec.UserAgent,
		Browser:        rec.Browser,
		BrowserVersion: rec.BrowserVersion,
		OS:             rec.OS,
		DeviceType:     &deviceType,
		IsMobile:       BoolToInt(rec.IsMobile),
		IsBot:          BoolToInt(rec.IsBot),
		Referer:        rec.Referer,
		AcceptLanguage: rec.AcceptLanguage,
		AcceptEncoding: rec.AcceptEncoding,
		Headers:        rec.Headers,
		QueryParams:    rec.QueryParams,
		TLSVersion:     rec.TLSVersion,
		HTTPProtocol:   rec.HTTPProtocol,
		CloudflareRay:  rec.CloudflareRay,
	}
}

// BoolToInt maps true to 1 and false to 0.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
