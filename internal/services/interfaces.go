package services

import (
	"context"
	"time"

	domain "github.com/northwind-goods/api/internal/domain"
)

// RateCalculator exposes the pure pricing operations of the shipping engine.
type RateCalculator interface {
	ResolveZone(country string) domain.ShippingZone
	TotalWeight(lines []domain.CartLine) float64
	TotalDimensions(lines []domain.CartLine) domain.Dimensions
	Quote(ctx context.Context, cmd QuoteShippingCommand) domain.PricingResult
	PackagingFee(subtotal int64) int64
}

// ShippingQuoteService validates quote requests and issues identifiable quotes.
type ShippingQuoteService interface {
	QuoteShipping(ctx context.Context, cmd ShippingQuoteCommand) (ShippingQuote, error)
}

// ShippingQuoteCommand carries a cart and destination to price. Subtotal
// overrides the computed merchandise subtotal when the storefront already
// applied discounts the cart lines do not reflect.
type ShippingQuoteCommand struct {
	Lines    []domain.CartLine
	Country  string
	Subtotal *int64
}

// ShippingQuote is a priced cart with a client-facing identifier.
type ShippingQuote struct {
	QuoteID      string
	Currency     string
	Subtotal     int64
	PackagingFee int64
	Result       domain.PricingResult
	CreatedAt    time.Time
}

// CheckoutService coordinates PSP session creation for a priced cart.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (domain.CheckoutSession, error)
}

// CreateCheckoutSessionCommand carries everything needed to open a PSP session.
type CreateCheckoutSessionCommand struct {
	Lines          []domain.CartLine
	Country        string
	Subtotal       *int64
	SuccessURL     string
	CancelURL      string
	PSP            string
	Locale         string
	Metadata       map[string]string
	IdempotencyKey string
}
