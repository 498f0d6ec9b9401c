package visitor

import "time"

// Device classes stored in Record.DeviceType.
const (
	DeviceMobile  = "Mobile"
	DeviceDesktop = "Desktop"
)

// TimestampLayout renders capture times as ISO-8601 UTC with millisecond precision.
// Lexicographic order of the rendered strings matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Record is one classified request. Optional fields are nil when the signal
// was absent. A Record is built once by Classifier.Classify and never mutated.
type Record struct {
	Timestamp time.Time
	Domain    string
	Path      string
	Method    string
	IP        string

	Country   *string
	City      *string
	Region    *string
	Timezone  *string
	Latitude  *string
	Longitude *string
	ASN       *string

	UserAgent      string
	Browser        *string
	BrowserVersion *string
	OS             *string
	// DeviceType is DeviceMobile exactly when IsMobile is true.
	DeviceType string
	IsMobile   bool
	IsBot      bool

	Referer        *string
	AcceptLanguage *string
	AcceptEncoding *string

	// Headers is a JSON object of every request header.
	Headers string
	// QueryParams is a JSON object of the query string, nil when there are no parameters.
	QueryParams *string

	TLSVersion    *string
	HTTPProtocol  *string
	CloudflareRay *string
}

// TimestampString returns the capture time in TimestampLayout.
func (r Record) TimestampString() string {
	return r.Timestamp.UTC().Format(TimestampLayout)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
