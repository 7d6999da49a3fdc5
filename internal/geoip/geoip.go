package geoip

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

// Reader annotates addresses with a short location from a MaxMind City or
// Country database.
type Reader struct {
	db *maxminddb.Reader
}

type record struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
}

func Open(path string) (*Reader, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Reader{db: db}, nil
}

// Locate returns "City, CC", "CC" or an empty string when the address is
// private, unparsable or unknown to the database.
func (r *Reader) Locate(addr string) string {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if !public(ip) {
		return ""
	}

	var rec record
	if err := r.db.Lookup(ip, &rec); err != nil {
		return ""
	}
	return format(rec)
}

func (r *Reader) Close() error {
	return r.db.Close()
}

func public(ip net.IP) bool {
	return ip != nil &&
		!ip.IsPrivate() &&
		!ip.IsLoopback() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsUnspecified() &&
		!ip.IsMulticast()
}

func format(rec record) string {
	country := rec.Country.ISOCode
	city := rec.City.Names["en"]
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	default:
		return rec.Country.Names["en"]
	}
}
