package domain

import (
	"time"
)

// CartLine is a single priced entry in a checkout cart as supplied by the
// storefront. Weight and dimensions are optional; the shipping engine
// substitutes catalog defaults when they are missing.
type CartLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
	// UnitWeightGrams carries the weight from the primary catalog path.
	// Zero means unknown.
	UnitWeightGrams int
	// UnitWeightRaw carries the JSON-embedded weight string from the legacy
	// catalog path, expressed in kilograms unless suffixed with a unit.
	// Empty means unknown.
	UnitWeightRaw  string
	UnitDimensions *Dimensions
	ImageURL       string
}

// Dimensions describes a bounding box in centimetres.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// Volume returns the box volume in cubic centimetres.
func (d Dimensions) Volume() float64 {
	return d.Length * d.Width * d.Height
}

// Address represents the postal address shape shared with the order layer.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// CheckoutSession represents PSP checkout session metadata returned to clients.
type CheckoutSession struct {
	SessionID    string
	PSP          string
	ClientSecret string
	RedirectURL  string
	ExpiresAt    time.Time
}
