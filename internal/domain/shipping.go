package domain

// ShippingMethod tags a rate quote with the service level it prices.
type ShippingMethod string

const (
	// ShippingMethodStandard is the default ground/air service for a zone.
	ShippingMethodStandard ShippingMethod = "standard"
	// ShippingMethodExpress is the expedited service for a zone.
	ShippingMethodExpress ShippingMethod = "express"
	// ShippingMethodFree replaces both services when the order subtotal
	// clears the zone's free-shipping threshold.
	ShippingMethodFree ShippingMethod = "free"
)

// ZoneWildcard marks the country list of the catch-all zone.
const ZoneWildcard = "*"

// DeliveryWindow bounds a delivery estimate in business days.
type DeliveryWindow struct {
	Min int
	Max int
}

// ShippingZone groups destination countries sharing one rate formula.
// Zones are resolved in declaration order; the wildcard zone must be last.
type ShippingZone struct {
	Name                  string
	Countries             []string
	BaseRate              int64
	PerKilogramRate       int64
	ExpressMultiplier     float64
	FreeShippingThreshold int64
	StandardDays          DeliveryWindow
	ExpressDays           DeliveryWindow
}

// IsCatchAll reports whether the zone matches every destination.
func (z ShippingZone) IsCatchAll() bool {
	for _, c := range z.Countries {
		if c == ZoneWildcard {
			return true
		}
	}
	return false
}

// RateQuote is one shipping option priced for a specific cart and zone.
type RateQuote struct {
	Cost    int64
	MinDays int
	MaxDays int
	Label   string
	Method  ShippingMethod
}

// PricingResult captures everything the rate engine derives for one request.
// It is produced fresh per calculation and never mutated afterwards.
type PricingResult struct {
	Zone                   string
	WeightKilograms        float64
	Dimensions             Dimensions
	VolumeCubicCentimetres float64
	Standard               RateQuote
	Express                RateQuote
	FreeShippingThreshold  int64
	FreeShipping           bool
}

// ShippingOptions lists the quotes to offer at checkout: standard then
// express, or a single free option when the threshold was met.
func (r PricingResult) ShippingOptions() []RateQuote {
	if r.FreeShipping {
		free := r.Standard
		free.Cost = 0
		free.Label = "Free shipping"
		free.Method = ShippingMethodFree
		return []RateQuote{free}
	}
	return []RateQuote{r.Standard, r.Express}
}
