package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindProvider resolves IPs against a local MaxMind City database,
// avoiding the network round-trip of the HTTP provider.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// NewMaxMindProvider opens the .mmdb city database at the given path.
func NewMaxMindProvider(dbPath string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open maxmind database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

// Close releases the underlying database handle.
func (p *MaxMindProvider) Close() error {
	return p.reader.Close()
}

// Lookup implements Provider.
func (p *MaxMindProvider) Lookup(_ context.Context, ip string) (*Location, error) {
	if ip == "" || ip == UnknownIP {
		return nil, fmt.Errorf("no resolvable ip address")
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid ip address: %s", ip)
	}

	record, err := p.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("maxmind city lookup failed: %w", err)
	}

	loc := &Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Timezone:    record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}

	return loc, nil
}
