package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/northwind-goods/api/internal/domain"
)

var (
	// ErrShippingQuoteInvalidInput indicates the caller supplied an unusable cart or destination.
	ErrShippingQuoteInvalidInput = errors.New("shipping quote: invalid input")
	// ErrShippingQuoteUnavailable indicates quoting dependencies are missing.
	ErrShippingQuoteUnavailable = errors.New("shipping quote: unavailable")
)

// ShippingQuoteServiceDeps wires the dependencies of the quote service.
type ShippingQuoteServiceDeps struct {
	Engine   RateCalculator
	Currency string
	Clock    func() time.Time
	IDGen    func() string
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type shippingQuoteService struct {
	engine   RateCalculator
	currency string
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewShippingQuoteService constructs a ShippingQuoteService validating required dependencies.
func NewShippingQuoteService(deps ShippingQuoteServiceDeps) (ShippingQuoteService, error) {
	if deps.Engine == nil {
		return nil, errors.New("shipping quote service: rate engine is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "JPY"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shippingQuoteService{
		engine:   deps.Engine,
		currency: currency,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// QuoteShipping validates the cart, prices it against the zone table, and
// stamps the result with a fresh quote id.
func (s *shippingQuoteService) QuoteShipping(ctx context.Context, cmd ShippingQuoteCommand) (ShippingQuote, error) {
	if s == nil || s.engine == nil {
		return ShippingQuote{}, ErrShippingQuoteUnavailable
	}
	if err := validateCartLines(cmd.Lines); err != nil {
		return ShippingQuote{}, err
	}
	if strings.TrimSpace(cmd.Country) == "" {
		return ShippingQuote{}, ErrShippingQuoteInvalidInput
	}
	if cmd.Subtotal != nil && *cmd.Subtotal < 0 {
		return ShippingQuote{}, ErrShippingQuoteInvalidInput
	}

	subtotal := cartSubtotal(cmd.Lines)
	if cmd.Subtotal != nil {
		subtotal = *cmd.Subtotal
	}
	result := s.engine.Quote(ctx, QuoteShippingCommand{
		Lines:    cmd.Lines,
		Country:  cmd.Country,
		Subtotal: subtotal,
	})

	quote := ShippingQuote{
		QuoteID:      s.newID(),
		Currency:     s.currency,
		Subtotal:     subtotal,
		PackagingFee: s.engine.PackagingFee(subtotal),
		Result:       result,
		CreatedAt:    s.now(),
	}
	s.logger(ctx, "shipping.quote.issued", map[string]any{
		"quoteId":  quote.QuoteID,
		"zone":     result.Zone,
		"subtotal": subtotal,
		"free":     result.FreeShipping,
	})
	return quote, nil
}

// validateCartLines rejects carts the pricing layer cannot reason about.
// Missing weights and dimensions are fine; quantities and prices are not
// allowed to be nonsensical.
func validateCartLines(lines []domain.CartLine) error {
	for _, line := range lines {
		if line.Quantity < 1 {
			return ErrShippingQuoteInvalidInput
		}
		if line.UnitPrice < 0 {
			return ErrShippingQuoteInvalidInput
		}
	}
	return nil
}

func cartSubtotal(lines []domain.CartLine) int64 {
	var subtotal int64
	for _, line := range lines {
		qty := int64(line.Quantity)
		if qty < 1 {
			qty = 1
		}
		subtotal += line.UnitPrice * qty
	}
	return subtotal
}
