// Package api hosts the HTTP server that fronts every parked hostname.
// All paths on the public listener go through one dispatch function:
//   - active subdomains are forwarded to their origin untouched.
//   - GET/HEAD /admin and /admin/ serve the static dashboard.
//   - GET/HEAD on the admin query path return stored visitor rows as JSON.
//   - everything else is classified, logged and answered with the parked page.
//
// Health, readiness and Prometheus metrics live on a separate ops handler so
// that no public path is reserved on parked hostnames.
package api
