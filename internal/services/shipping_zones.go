package services

import (
	"strings"

	domain "github.com/northwind-goods/api/internal/domain"
)

// DefaultZones returns the built-in zone table in resolution order.
// The last zone is the catch-all wildcard and matches any country the
// earlier zones do not claim, so resolution is total by construction.
func DefaultZones() []domain.ShippingZone {
	return []domain.ShippingZone{
		{
			Name:                  "Domestic",
			Countries:             []string{"JP"},
			BaseRate:              500,
			PerKilogramRate:       50,
			ExpressMultiplier:     2.0,
			FreeShippingThreshold: 10000,
			StandardDays:          domain.DeliveryWindow{Min: 2, Max: 4},
			ExpressDays:           domain.DeliveryWindow{Min: 1, Max: 2},
		},
		{
			Name:                  "East Asia",
			Countries:             []string{"KR", "CN", "TW", "HK", "SG", "MY", "TH", "VN", "PH"},
			BaseRate:              1500,
			PerKilogramRate:       300,
			ExpressMultiplier:     1.8,
			FreeShippingThreshold: 20000,
			StandardDays:          domain.DeliveryWindow{Min: 4, Max: 7},
			ExpressDays:           domain.DeliveryWindow{Min: 2, Max: 4},
		},
		{
			Name: "Americas & Europe",
			Countries: []string{
				"US", "CA", "MX", "GB", "IE", "FR", "DE", "ES", "IT", "NL", "BE",
				"CH", "AT", "SE", "DK", "NO", "FI", "PT", "PL", "CZ", "AU", "NZ",
			},
			BaseRate:              2400,
			PerKilogramRate:       550,
			ExpressMultiplier:     1.6,
			FreeShippingThreshold: 30000,
			StandardDays:          domain.DeliveryWindow{Min: 7, Max: 14},
			ExpressDays:           domain.DeliveryWindow{Min: 4, Max: 7},
		},
		{
			Name:                  "Rest of World",
			Countries:             []string{domain.ZoneWildcard},
			BaseRate:              3200,
			PerKilogramRate:       700,
			ExpressMultiplier:     1.5,
			FreeShippingThreshold: 30000,
			StandardDays:          domain.DeliveryWindow{Min: 10, Max: 21},
			ExpressDays:           domain.DeliveryWindow{Min: 5, Max: 10},
		},
	}
}

// resolveZone walks the table in order and returns the first zone listing the
// country, falling back to the catch-all. Country codes compare
// case-insensitively.
func resolveZone(zones []domain.ShippingZone, country string) domain.ShippingZone {
	code := strings.ToUpper(strings.TrimSpace(country))
	var catchAll *domain.ShippingZone
	for i := range zones {
		zone := &zones[i]
		if zone.IsCatchAll() && catchAll == nil {
			catchAll = zone
		}
		for _, c := range zone.Countries {
			if strings.EqualFold(c, code) {
				return *zone
			}
		}
	}
	if catchAll != nil {
		return *catchAll
	}
	// Constructor validation guarantees a catch-all; an empty table yields
	// the zero zone rather than panicking.
	return domain.ShippingZone{}
}

func hasCatchAllZone(zones []domain.ShippingZone) bool {
	for _, zone := range zones {
		if zone.IsCatchAll() {
			return true
		}
	}
	return false
}
