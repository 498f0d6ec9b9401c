// Package pages renders the parked page and serves the admin dashboard.
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
)

//go:embed assets/*.tmpl
var assets embed.FS

var (
	parkedTemplate    = template.Must(template.ParseFS(assets, "assets/parked.html.tmpl"))
	dashboardTemplate = template.Must(template.ParseFS(assets, "assets/dashboard.html.tmpl"))
)

// Defaults for the parked page response.
const (
	DefaultOperatorHeader = "X-Powered-By"
	DefaultCacheMaxAge    = 3600
	DefaultLogsPath       = "/admin/logs"
)

// Config controls the parked page response.
type Config struct {
	OperatorHeader string
	Operator       string
	CacheMaxAge    int
	// LogsPath is the admin query path the dashboard fetches from.
	LogsPath string
}

// Pages writes the two static responses.
type Pages struct {
	cfg       Config
	dashboard []byte
}

// New renders the dashboard once and prepares the parked template.
func New(cfg Config) (*Pages, error) {
	if cfg.OperatorHeader == "" {
		cfg.OperatorHeader = DefaultOperatorHeader
	}
	if cfg.CacheMaxAge < 0 {
		cfg.CacheMaxAge = DefaultCacheMaxAge
	}
	if cfg.LogsPath == "" {
		cfg.LogsPath = DefaultLogsPath
	}
	var dash bytes.Buffer
	if err := dashboardTemplate.Execute(&dash, cfg); err != nil {
		return nil, fmt.Errorf("render dashboard: %w", err)
	}
	return &Pages{cfg: cfg, dashboard: dash.Bytes()}, nil
}

type parkedData struct {
	Host     string
	Operator string
}

// RenderParked returns the parked page body for host.
func (p *Pages) RenderParked(host string) ([]byte, error) {
	var buf bytes.Buffer
	if err := parkedTemplate.Execute(&buf, parkedData{Host: host, Operator: p.cfg.Operator}); err != nil {
		return nil, fmt.Errorf("render parked page: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteParked writes the parked page for host with status 200.
func (p *Pages) WriteParked(w http.ResponseWriter, r *http.Request, host string) error {
	body, err := p.RenderParked(host)
	if err != nil {
		return err
	}
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(p.cfg.CacheMaxAge))
	h.Set("Content-Length", strconv.Itoa(len(body)))
	if p.cfg.Operator != "" {
		h.Set(p.cfg.OperatorHeader, p.cfg.Operator)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return nil
	}
	_, err = w.Write(body)
	return err //nolint:wrapcheck
}

// WriteDashboard writes the admin dashboard.
func (p *Pages) WriteDashboard(w http.ResponseWriter, r *http.Request) error {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(len(p.dashboard)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return nil
	}
	_, err := w.Write(p.dashboard)
	return err //nolint:wrapcheck
}
