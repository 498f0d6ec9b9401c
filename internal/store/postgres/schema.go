package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the visitors table and its lookup index when missing.
// Booleans are stored as 0/1 SMALLINT.
func (s *VisitorStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("visitor store is not configured")
	}
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id              BIGSERIAL PRIMARY KEY,
	timestamp       TEXT NOT NULL,
	domain          TEXT NOT NULL,
	path            TEXT NOT NULL,
	method          TEXT NOT NULL,
	ip              TEXT NOT NULL,
	country         TEXT,
	city            TEXT,
	region          TEXT,
	timezone        TEXT,
	latitude        TEXT,
	longitude       TEXT,
	asn             TEXT,
	user_agent      TEXT NOT NULL,
	browser         TEXT,
	browser_version TEXT,
	os              TEXT,
	device_type     TEXT,
	is_mobile       SMALLINT NOT NULL DEFAULT 0,
	is_bot          SMALLINT NOT NULL DEFAULT 0,
	referer         TEXT,
	accept_language TEXT,
	accept_encoding TEXT,
	headers         TEXT NOT NULL,
	query_params    TEXT,
	tls_version     TEXT,
	http_protocol   TEXT,
	cloudflare_ray  TEXT
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_domain_timestamp_idx ON %s (domain, timestamp DESC)`,
			s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_timestamp_idx ON %s (timestamp DESC)`, s.table, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure visitor schema: %w", err)
		}
	}
	return nil
}
