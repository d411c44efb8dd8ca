// Package geoip answers city and ASN lookups from local GeoLite2 databases.
// Both databases are optional; lookups against a missing database return nil.
package geoip

import (
	"net"
	"path/filepath"

	"github.com/oschwald/geoip2-golang"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/logger"
)

const (
	cityFile = "GeoLite2-City.mmdb"
	asnFile  = "GeoLite2-ASN.mmdb"
)

// Service wraps the two maxmind readers.
type Service struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
	log  logger.Logger
}

// Open loads the databases found under dir. A missing or unreadable file is
// logged and its lookups disabled; Open itself never fails.
func Open(dir string, log logger.Logger) *Service {
	s := &Service{log: log}

	if r, err := geoip2.Open(filepath.Join(dir, cityFile)); err == nil {
		s.city = r
		log.Info("geoip city database loaded", logger.String("file", cityFile))
	} else {
		log.Warnf("geoip city database unavailable: %v", err)
	}

	if r, err := geoip2.Open(filepath.Join(dir, asnFile)); err == nil {
		s.asn = r
		log.Info("geoip asn database loaded", logger.String("file", asnFile))
	} else {
		log.Warnf("geoip asn database unavailable: %v", err)
	}

	return s
}

// Close releases both readers.
func (s *Service) Close() {
	if s.city != nil {
		_ = s.city.Close()
	}
	if s.asn != nil {
		_ = s.asn.Close()
	}
}

// Location returns the city-level position of ip, or nil when unknown.
func (s *Service) Location(ipStr string) *domain.Location {
	if s.city == nil {
		return nil
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil
	}
	rec, err := s.city.City(ip)
	if err != nil || rec == nil {
		return nil
	}
	loc := &domain.Location{
		Country:     rec.Country.Names["en"],
		CountryCode: rec.Country.IsoCode,
		City:        rec.City.Names["en"],
		Latitude:    rec.Location.Latitude,
		Longitude:   rec.Location.Longitude,
		TimeZone:    rec.Location.TimeZone,
	}
	if loc.Country == "" && loc.City == "" && loc.Latitude == 0 && loc.Longitude == 0 {
		return nil
	}
	return loc
}

// ASN returns the autonomous system announcing ip, or nil when unknown.
func (s *Service) ASN(ipStr string) *domain.ASN {
	if s.asn == nil {
		return nil
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil
	}
	rec, err := s.asn.ASN(ip)
	if err != nil || rec == nil || rec.AutonomousSystemNumber == 0 {
		return nil
	}
	return &domain.ASN{
		Number:       rec.AutonomousSystemNumber,
		Organization: rec.AutonomousSystemOrganization,
	}
}
