// Package geoip fills visitor location fields from MaxMind databases when the
// edge did not supply them.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/oschwald/maxminddb-golang"

	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// Config names the database files. Empty paths disable that lookup.
type Config struct {
	CityDB string
	ASNDB  string
}

type lookuper interface {
	Lookup(ip net.IP, result any) error
	Close() error
}

type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Subdivisions []struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"subdivisions"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
		TimeZone  string   `maxminddb:"time_zone"`
	} `maxminddb:"location"`
}

type asnRecord struct {
	Number uint `maxminddb:"autonomous_system_number"`
}

// Enricher looks up client IPs. A nil or empty Enricher is a no-op.
type Enricher struct {
	city lookuper
	asn  lookuper
}

// Open loads the configured databases.
func Open(cfg Config) (*Enricher, error) {
	e := &Enricher{}
	if cfg.CityDB != "" {
		r, err := maxminddb.Open(cfg.CityDB)
		if err != nil {
			return nil, fmt.Errorf("open city database: %w", err)
		}
		e.city = r
	}
	if cfg.ASNDB != "" {
		r, err := maxminddb.Open(cfg.ASNDB)
		if err != nil {
			if e.city != nil {
				_ = e.city.Close()
			}
			return nil, fmt.Errorf("open asn database: %w", err)
		}
		e.asn = r
	}
	return e, nil
}

// Enabled reports whether any database is loaded.
func (e *Enricher) Enabled() bool {
	return e != nil && (e.city != nil || e.asn != nil)
}

// Fill sets the unset fields of g from the databases. Fields the edge already
// provided are left untouched. Lookup misses are not errors.
func (e *Enricher) Fill(ip string, g *visitor.Geo) error {
	if !e.Enabled() || g == nil {
		return nil
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil
	}

	var errs []error
	if e.city != nil {
		var rec cityRecord
		if err := e.city.Lookup(addr, &rec); err != nil {
			errs = append(errs, fmt.Errorf("city lookup: %w", err))
		} else {
			applyCity(rec, g)
		}
	}
	if e.asn != nil {
		var rec asnRecord
		if err := e.asn.Lookup(addr, &rec); err != nil {
			errs = append(errs, fmt.Errorf("asn lookup: %w", err))
		} else if g.ASN == "" && rec.Number != 0 {
			g.ASN = strconv.FormatUint(uint64(rec.Number), 10)
		}
	}
	return errors.Join(errs...)
}

func applyCity(rec cityRecord, g *visitor.Geo) {
	setIfEmpty(&g.Country, rec.Country.ISOCode)
	setIfEmpty(&g.City, rec.City.Names["en"])
	if len(rec.Subdivisions) > 0 {
		sub := rec.Subdivisions[0]
		name := sub.Names["en"]
		if name == "" {
			name = sub.ISOCode
		}
		setIfEmpty(&g.Region, name)
	}
	setIfEmpty(&g.Timezone, rec.Location.TimeZone)
	if rec.Location.Latitude != nil && rec.Location.Longitude != nil {
		setIfEmpty(&g.Latitude, strconv.FormatFloat(*rec.Location.Latitude, 'f', -1, 64))
		setIfEmpty(&g.Longitude, strconv.FormatFloat(*rec.Location.Longitude, 'f', -1, 64))
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// Close releases the database readers.
func (e *Enricher) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	for _, r := range []lookuper{e.city, e.asn} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
