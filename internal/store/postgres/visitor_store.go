// Package postgres provides the Postgres-backed visitor store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/parked-domain-tracker/internal/store"
	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// DefaultTable is the visitor log table name.
const DefaultTable = "visitors"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for visitor rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// VisitorStore reads and writes visitor rows in Postgres.
type VisitorStore struct {
	pool  pgxPool
	table string
}

var _ store.VisitorStore = (*VisitorStore)(nil)

// NewVisitorStore connects a pool using cfg.
func NewVisitorStore(ctx context.Context, cfg Config) (*VisitorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := resolveTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &VisitorStore{pool: pool, table: table}, nil
}

// NewVisitorStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewVisitorStoreWithPool(pool pgxPool, table string) (*VisitorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	return &VisitorStore{pool: pool, table: table}, nil
}

func resolveTable(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *VisitorStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *VisitorStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return store.ErrStoreUnavailable
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// InsertVisitor inserts one visitor row. Unset optionals are written as NULL.
func (s *VisitorStore) InsertVisitor(ctx context.Context, rec visitor.Record) error {
	if s == nil || s.pool == nil {
		return store.ErrStoreUnavailable
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	timestamp, domain, path, method, ip, country, city, region,
	timezone, latitude, longitude, asn, user_agent, browser,
	browser_version, os, device_type, is_mobile, is_bot, referer,
	accept_language, accept_encoding, headers, query_params,
	tls_version, http_protocol, cloudflare_ray
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,
	$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27
)`, s.table)

	args := []any{
		rec.TimestampString(),
		rec.Domain,
		rec.Path,
		rec.Method,
		rec.IP,
		nullable(rec.Country),
		nullable(rec.City),
		nullable(rec.Region),
		nullable(rec.Timezone),
		nullable(rec.Latitude),
		nullable(rec.Longitude),
		nullable(rec.ASN),
		rec.UserAgent,
		nullable(rec.Browser),
		nullable(rec.BrowserVersion),
		nullable(rec.OS),
		nullableString(rec.DeviceType),
		store.BoolToInt(rec.IsMobile),
		store.BoolToInt(rec.IsBot),
		nullable(rec.Referer),
		nullable(rec.AcceptLanguage),
		nullable(rec.AcceptEncoding),
		rec.Headers,
		nullable(rec.QueryParams),
		nullable(rec.TLSVersion),
		nullable(rec.HTTPProtocol),
		nullable(rec.CloudflareRay),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert visitor: %w", err)
	}
	return nil
}

// ListVisitors selects every column, optionally filtered by exact domain,
// newest first, with limit and offset applied.
func (s *VisitorStore) ListVisitors(ctx context.Context, q store.Query) ([]store.Row, error) {
	if s == nil || s.pool == nil {
		return nil, store.ErrStoreUnavailable
	}
	query, args := s.buildListQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	out := make([]store.Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visitor rows: %w", err)
	}
	return out, nil
}

func (s *VisitorStore) buildListQuery(q store.Query) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, 3)
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(store.Columns, ", "), s.table)
	if q.Domain != "" {
		args = append(args, q.Domain)
		fmt.Fprintf(&b, " WHERE domain = $%d", len(args))
	}
	args = append(args, q.Limit)
	fmt.Fprintf(&b, " ORDER BY timestamp DESC LIMIT $%d", len(args))
	args = append(args, q.Offset)
	fmt.Fprintf(&b, " OFFSET $%d", len(args))
	return b.String(), args
}

func scanRow(rows pgx.Rows) (store.Row, error) {
	var (
		row                                         store.Row
		country, city, region, timezone             pgtype.Text
		latitude, longitude, asn                    pgtype.Text
		browser, browserVersion, osName, deviceType pgtype.Text
		referer, acceptLanguage, acceptEncoding     pgtype.Text
		queryParams, tlsVersion, httpProto, cfRay   pgtype.Text
		isMobile, isBot                             int16
	)
	err := rows.Scan(
		&row.ID,
		&row.Timestamp,
		&row.Domain,
		&row.Path,
		&row.Method,
		&row.IP,
		&country,
		&city,
		&region,
		&timezone,
		&latitude,
		&longitude,
		&asn,
		&row.UserAgent,
		&browser,
		&browserVersion,
		&osName,
		&deviceType,
		&isMobile,
		&isBot,
		&referer,
		&acceptLanguage,
		&acceptEncoding,
		&row.Headers,
		&queryParams,
		&tlsVersion,
		&httpProto,
		&cfRay,
	)
	if err != nil {
		return store.Row{}, err //nolint:wrapcheck // wrapped by caller
	}
	row.Country = textPtr(country)
	row.City = textPtr(city)
	row.Region = textPtr(region)
	row.Timezone = textPtr(timezone)
	row.Latitude = textPtr(latitude)
	row.Longitude = textPtr(longitude)
	row.ASN = textPtr(asn)
	row.Browser = textPtr(browser)
	row.BrowserVersion = textPtr(browserVersion)
	row.OS = textPtr(osName)
	row.DeviceType = textPtr(deviceType)
	row.IsMobile = int(isMobile)
	row.IsBot = int(isBot)
	row.Referer = textPtr(referer)
	row.AcceptLanguage = textPtr(acceptLanguage)
	row.AcceptEncoding = textPtr(acceptEncoding)
	row.QueryParams = textPtr(queryParams)
	row.TLSVersion = textPtr(tlsVersion)
	row.HTTPProtocol = textPtr(httpProto)
	row.CloudflareRay = textPtr(cfRay)
	return row, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.String
	return &v
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
