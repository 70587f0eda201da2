package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	domain "github.com/northwind-goods/api/internal/domain"
)

const (
	// defaultItemWeightKilograms substitutes for lines with no usable weight.
	defaultItemWeightKilograms = 0.5
	// defaultPackagingFeeBasisPoints is the packaging surcharge rate (0.5%).
	defaultPackagingFeeBasisPoints = 50
	// defaultPackagingFeeMinimum floors the packaging fee in minor units.
	defaultPackagingFeeMinimum = 200
)

var defaultBoxDimensions = domain.Dimensions{Length: 20, Width: 15, Height: 10}

// ShippingRateEngineDeps wires the dependencies and tunables of the rate engine.
type ShippingRateEngineDeps struct {
	Zones                   []domain.ShippingZone
	DefaultItemWeightGrams  int
	DefaultBox              domain.Dimensions
	PackagingFeeBasisPoints int64
	PackagingFeeMinimum     int64
	Logger                  func(ctx context.Context, event string, fields map[string]any)
}

// ShippingRateEngine derives shipping quotes and packaging fees from cart
// contents and a destination country. All methods are pure: the same inputs
// always produce the same outputs, and nothing is cached or mutated.
type ShippingRateEngine struct {
	zones             []domain.ShippingZone
	defaultWeightKg   float64
	defaultBox        domain.Dimensions
	packagingFeeBps   int64
	packagingFeeFloor int64
	logger            func(ctx context.Context, event string, fields map[string]any)
}

// NewShippingRateEngine constructs a ShippingRateEngine validating the zone table.
func NewShippingRateEngine(deps ShippingRateEngineDeps) (*ShippingRateEngine, error) {
	zones := deps.Zones
	if len(zones) == 0 {
		zones = DefaultZones()
	}
	if !hasCatchAllZone(zones) {
		return nil, errors.New("shipping engine: zone table needs a catch-all zone")
	}
	for _, zone := range zones {
		if zone.BaseRate < 0 || zone.PerKilogramRate < 0 {
			return nil, fmt.Errorf("shipping engine: zone %q has negative rates", zone.Name)
		}
		if zone.ExpressMultiplier < 1 {
			return nil, fmt.Errorf("shipping engine: zone %q express multiplier below 1", zone.Name)
		}
	}

	weightKg := defaultItemWeightKilograms
	if deps.DefaultItemWeightGrams > 0 {
		weightKg = float64(deps.DefaultItemWeightGrams) / 1000
	}
	box := deps.DefaultBox
	if box.Volume() <= 0 {
		box = defaultBoxDimensions
	}
	bps := deps.PackagingFeeBasisPoints
	if bps <= 0 {
		bps = defaultPackagingFeeBasisPoints
	}
	floor := deps.PackagingFeeMinimum
	if floor <= 0 {
		floor = defaultPackagingFeeMinimum
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	engine := &ShippingRateEngine{
		zones:             append([]domain.ShippingZone(nil), zones...),
		defaultWeightKg:   weightKg,
		defaultBox:        box,
		packagingFeeBps:   bps,
		packagingFeeFloor: floor,
		logger:            logger,
	}
	return engine, nil
}

// ResolveZone returns the rate zone for a destination country code.
func (e *ShippingRateEngine) ResolveZone(country string) domain.ShippingZone {
	return resolveZone(e.zones, country)
}

// TotalWeight sums the billable weight of the cart in kilograms. Per line the
// gram field wins, then the raw weight string, then the engine default.
func (e *ShippingRateEngine) TotalWeight(lines []domain.CartLine) float64 {
	var total float64
	for _, line := range lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		total += e.lineWeightKilograms(line) * float64(qty)
	}
	return total
}

func (e *ShippingRateEngine) lineWeightKilograms(line domain.CartLine) float64 {
	if line.UnitWeightGrams > 0 {
		return float64(line.UnitWeightGrams) / 1000
	}
	if kg, ok := parseWeightKilograms(line.UnitWeightRaw); ok {
		return kg
	}
	return e.defaultWeightKg
}

// parseWeightKilograms parses a catalog weight string. The bare number is
// kilograms; a trailing kg or g suffix (case-insensitive) overrides the unit.
func parseWeightKilograms(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return 0, false
	}
	unit := 1.0
	switch {
	case strings.HasSuffix(s, "kg"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "kg"))
	case strings.HasSuffix(s, "g"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "g"))
		unit = 1.0 / 1000
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value * unit, true
}

// TotalDimensions aggregates cart dimensions additively per axis: each line
// contributes its box (or the default box) once per unit of quantity. The
// result is a conservative stacking bound, not a bin-packing solution.
func (e *ShippingRateEngine) TotalDimensions(lines []domain.CartLine) domain.Dimensions {
	var total domain.Dimensions
	for _, line := range lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		box := e.defaultBox
		if line.UnitDimensions != nil && line.UnitDimensions.Volume() > 0 {
			box = *line.UnitDimensions
		}
		total.Length += box.Length * float64(qty)
		total.Width += box.Width * float64(qty)
		total.Height += box.Height * float64(qty)
	}
	return total
}

// QuoteShippingCommand carries the inputs for one rate calculation.
type QuoteShippingCommand struct {
	Lines    []domain.CartLine
	Country  string
	Subtotal int64
}

// Quote resolves the destination zone and prices both service levels.
//
// Standard cost is round(base + weight * perKg). Express cost is the already
// rounded standard cost times the zone multiplier, rounded again, so the two
// figures always agree with what a customer could recompute from the quoted
// standard price. When the subtotal clears the zone threshold both costs
// collapse to zero and the delivery windows keep their standard values.
func (e *ShippingRateEngine) Quote(ctx context.Context, cmd QuoteShippingCommand) domain.PricingResult {
	zone := e.ResolveZone(cmd.Country)
	weight := e.TotalWeight(cmd.Lines)
	dims := e.TotalDimensions(cmd.Lines)

	standardCost := int64(math.Round(float64(zone.BaseRate) + weight*float64(zone.PerKilogramRate)))
	expressCost := int64(math.Round(float64(standardCost) * zone.ExpressMultiplier))

	freeShipping := zone.FreeShippingThreshold > 0 && cmd.Subtotal >= zone.FreeShippingThreshold
	if freeShipping {
		standardCost = 0
		expressCost = 0
	}

	result := domain.PricingResult{
		Zone:                   zone.Name,
		WeightKilograms:        weight,
		Dimensions:             dims,
		VolumeCubicCentimetres: dims.Volume(),
		Standard: domain.RateQuote{
			Cost:    standardCost,
			MinDays: zone.StandardDays.Min,
			MaxDays: zone.StandardDays.Max,
			Label:   "Standard shipping",
			Method:  domain.ShippingMethodStandard,
		},
		Express: domain.RateQuote{
			Cost:    expressCost,
			MinDays: zone.ExpressDays.Min,
			MaxDays: zone.ExpressDays.Max,
			Label:   "Express shipping",
			Method:  domain.ShippingMethodExpress,
		},
		FreeShippingThreshold: zone.FreeShippingThreshold,
		FreeShipping:          freeShipping,
	}

	e.logger(ctx, "shipping.quote.computed", map[string]any{
		"zone":     zone.Name,
		"country":  strings.ToUpper(strings.TrimSpace(cmd.Country)),
		"weightKg": weight,
		"standard": result.Standard.Cost,
		"express":  result.Express.Cost,
		"free":     freeShipping,
	})
	return result
}

// PackagingFee computes the packaging surcharge for a merchandise subtotal:
// a basis-point share of the subtotal, floored at the configured minimum.
func (e *ShippingRateEngine) PackagingFee(subtotal int64) int64 {
	if subtotal < 0 {
		subtotal = 0
	}
	fee := int64(math.Round(float64(subtotal) * float64(e.packagingFeeBps) / 10000))
	if fee < e.packagingFeeFloor {
		fee = e.packagingFeeFloor
	}
	return fee
}
