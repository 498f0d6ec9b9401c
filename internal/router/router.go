// Package router decides how an inbound request is handled.
package router

import (
	"net/http"
	"strings"
)

// DefaultAdminPath is the JSON log-query endpoint.
const DefaultAdminPath = "/admin/logs"

// Disposition is the handling chosen for one request.
type Disposition int

// Dispositions in evaluation order.
const (
	LogAndPark Disposition = iota
	PassThrough
	AdminDashboard
	AdminQuery
)

func (d Disposition) String() string {
	switch d {
	case PassThrough:
		return "pass_through"
	case AdminDashboard:
		return "admin_dashboard"
	case AdminQuery:
		return "admin_query"
	default:
		return "log_and_park"
	}
}

// Router holds the immutable routing configuration.
type Router struct {
	active    map[string]struct{}
	adminPath string
}

// New builds a Router from the active-subdomain hostnames and the admin query path.
func New(activeHosts []string, adminPath string) *Router {
	active := make(map[string]struct{}, len(activeHosts))
	for _, h := range activeHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			active[h] = struct{}{}
		}
	}
	if adminPath == "" {
		adminPath = DefaultAdminPath
	}
	return &Router{active: active, adminPath: adminPath}
}

// IsActive reports whether host bypasses classification and logging.
// host must already be lowercased and stripped of any port.
func (r *Router) IsActive(host string) bool {
	_, ok := r.active[host]
	return ok
}

// Decide picks the disposition for a request. Pass-through always wins,
// then the admin surfaces for read methods, and everything else is parked.
func (r *Router) Decide(host, path, method string) Disposition {
	if r.IsActive(host) {
		return PassThrough
	}
	if !isReadMethod(method) {
		return LogAndPark
	}
	switch {
	case path == r.adminPath:
		return AdminQuery
	case r.isDashboardPath(path):
		return AdminDashboard
	default:
		return LogAndPark
	}
}

// AdminPath returns the configured log-query path.
func (r *Router) AdminPath() string {
	return r.adminPath
}

func (r *Router) isDashboardPath(path string) bool {
	return path == "/admin" || path == "/admin/"
}

func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
