// Package main hosts the parked domain tracker entrypoint.
//
// Architecture overview:
//   - Every hostname pointed at the service reaches internal/api.Server. One dispatch function asks
//     internal/router for a disposition: pass-through, admin dashboard, admin query or log-and-park.
//   - Pass-through: hostnames listed in router.active_subdomains are relayed to their configured origin
//     by internal/proxy with the original Host header. Nothing is classified or stored.
//   - Log-and-park: internal/visitor classifies the request (browser, OS, device, bot, headers, query,
//     edge geo headers), internal/geoip optionally fills missing location fields from MaxMind databases,
//     and one row is written through store.VisitorStore under db.write_timeout. The parked page is
//     returned whether or not the write succeeded.
//   - Admin: GET/HEAD router.admin_path returns {"success","count","logs"} newest first with
//     domain/limit/offset filtering. GET /admin serves a static dashboard that reads that endpoint.
//   - Persistence: Postgres through pgxpool when db.dsn is set (schema created when db.auto_migrate is
//     true), otherwise an in-memory store.
//   - Observability: zap request logs carry the request ID and disposition. Prometheus counters and
//     histograms are served on the ops listener together with /healthz and /readyz.
//
// Quick checklist:
//   - Configure env vars: TRACKER_SERVER_PORT or PORT, TRACKER_SERVER_OPS_PORT, TRACKER_DB_DSN,
//     TRACKER_EDGE_IP_HEADER, TRACKER_GEOIP_CITY_DB, TRACKER_GEOIP_ASN_DB. Active subdomains are a list
//     and belong in the config file.
//   - Run locally: go run ./cmd/tracker -config config.yaml
//   - The process drains both listeners on SIGINT/SIGTERM, then closes the pool.
package main
