package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/northwind-goods/api/internal/domain"
	"github.com/northwind-goods/api/internal/payments"
)

const (
	packagingFeeItemName = "Packaging fee"
	weightMetadataFormat = "%.2fkg"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutPaymentFailed indicates the PSP session could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
)

// checkoutSessionManager abstracts payments.Manager for easier testing.
type checkoutSessionManager interface {
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Engine   RateCalculator
	Payments checkoutSessionManager
	Currency string
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	engine   RateCalculator
	payments checkoutSessionManager
	currency string
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Engine == nil {
		return nil, errors.New("checkout service: rate engine is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "JPY"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		engine:   deps.Engine,
		payments: deps.Payments,
		currency: currency,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateCheckoutSession prices the cart, builds the PSP payload, and opens a
// checkout session. The payload carries one line item per cart line, exactly
// one packaging-fee item, and the shipping options the rate engine produced
// for the destination.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (domain.CheckoutSession, error) {
	if s == nil || s.engine == nil || s.payments == nil {
		return domain.CheckoutSession{}, ErrCheckoutUnavailable
	}

	if len(cmd.Lines) == 0 {
		return domain.CheckoutSession{}, ErrCheckoutInvalidInput
	}
	if err := validateCartLines(cmd.Lines); err != nil {
		return domain.CheckoutSession{}, ErrCheckoutInvalidInput
	}
	country := strings.ToUpper(strings.TrimSpace(cmd.Country))
	successURL := strings.TrimSpace(cmd.SuccessURL)
	cancelURL := strings.TrimSpace(cmd.CancelURL)
	if country == "" || successURL == "" || cancelURL == "" {
		return domain.CheckoutSession{}, ErrCheckoutInvalidInput
	}
	if cmd.Subtotal != nil && *cmd.Subtotal < 0 {
		return domain.CheckoutSession{}, ErrCheckoutInvalidInput
	}

	subtotal := cartSubtotal(cmd.Lines)
	if cmd.Subtotal != nil {
		subtotal = *cmd.Subtotal
	}
	pricing := s.engine.Quote(ctx, QuoteShippingCommand{
		Lines:    cmd.Lines,
		Country:  country,
		Subtotal: subtotal,
	})
	packagingFee := s.engine.PackagingFee(subtotal)
	idempotencyKey := s.checkoutIdempotencyKey(cmd, country, subtotal)

	paymentCtx := payments.PaymentContext{
		PreferredProvider: strings.TrimSpace(cmd.PSP),
		Currency:          s.currency,
		Metadata:          copyStringMap(cmd.Metadata),
	}

	req := payments.CheckoutSessionRequest{
		Amount:          subtotal + packagingFee,
		Currency:        s.currency,
		SuccessURL:      successURL,
		CancelURL:       cancelURL,
		Locale:          strings.TrimSpace(cmd.Locale),
		Metadata:        s.buildPaymentMetadata(cmd.Metadata, pricing, subtotal, packagingFee),
		IdempotencyKey:  idempotencyKey,
		Items:           s.buildLineItems(cmd.Lines, packagingFee),
		ShippingOptions: s.buildShippingOptions(pricing),
	}

	session, err := s.payments.CreateCheckoutSession(ctx, paymentCtx, req)
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			return domain.CheckoutSession{}, ErrCheckoutInvalidInput
		}
		s.logger(ctx, "checkout.payment_session_failed", map[string]any{
			"country":  country,
			"zone":     pricing.Zone,
			"provider": paymentCtx.PreferredProvider,
			"error":    err.Error(),
		})
		return domain.CheckoutSession{}, ErrCheckoutPaymentFailed
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"sessionId":    session.ID,
		"provider":     session.Provider,
		"zone":         pricing.Zone,
		"subtotal":     subtotal,
		"packagingFee": packagingFee,
		"freeShipping": pricing.FreeShipping,
	})

	return domain.CheckoutSession{
		SessionID:    session.ID,
		PSP:          session.Provider,
		ClientSecret: session.ClientSecret,
		RedirectURL:  session.RedirectURL,
		ExpiresAt:    session.ExpiresAt.UTC(),
	}, nil
}

// buildLineItems maps cart lines to PSP items and appends the single
// packaging-fee item after them.
func (s *checkoutService) buildLineItems(lines []domain.CartLine, packagingFee int64) []payments.CheckoutLineItem {
	items := make([]payments.CheckoutLineItem, 0, len(lines)+1)
	for _, line := range lines {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			name = line.ProductID
		}
		items = append(items, payments.CheckoutLineItem{
			Name:     name,
			SKU:      line.ProductID,
			Quantity: int64(line.Quantity),
			Amount:   line.UnitPrice,
			Currency: s.currency,
			ImageURL: line.ImageURL,
		})
	}
	items = append(items, payments.CheckoutLineItem{
		Name:     packagingFeeItemName,
		Quantity: 1,
		Amount:   packagingFee,
		Currency: s.currency,
	})
	return items
}

// buildShippingOptions converts the engine's quotes into PSP shipping options,
// tagging each with the service level, billable weight, and resolved zone.
func (s *checkoutService) buildShippingOptions(pricing domain.PricingResult) []payments.ShippingOption {
	quotes := pricing.ShippingOptions()
	options := make([]payments.ShippingOption, 0, len(quotes))
	for _, quote := range quotes {
		options = append(options, payments.ShippingOption{
			Amount:          quote.Cost,
			Currency:        s.currency,
			DisplayName:     quote.Label,
			MinDeliveryDays: int64(quote.MinDays),
			MaxDeliveryDays: int64(quote.MaxDays),
			Metadata: map[string]string{
				"shipping_type": string(quote.Method),
				"weight":        fmt.Sprintf(weightMetadataFormat, pricing.WeightKilograms),
				"zone":          pricing.Zone,
			},
		})
	}
	return options
}

func (s *checkoutService) buildPaymentMetadata(base map[string]string, pricing domain.PricingResult, subtotal, packagingFee int64) map[string]string {
	metadata := copyStringMap(base)
	if metadata == nil {
		metadata = make(map[string]string, 4)
	}
	metadata["shipping_zone"] = pricing.Zone
	metadata["subtotal"] = fmt.Sprintf("%d", subtotal)
	metadata["packaging_fee"] = fmt.Sprintf("%d", packagingFee)
	if pricing.FreeShipping {
		metadata["free_shipping"] = "true"
	}
	return metadata
}

// checkoutIdempotencyKey prefers a caller-supplied key and otherwise derives a
// stable one from the cart contents so PSP retries collapse onto one session.
func (s *checkoutService) checkoutIdempotencyKey(cmd CreateCheckoutSessionCommand, country string, subtotal int64) string {
	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" {
		return key
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%d", strings.ToLower(strings.TrimSpace(cmd.PSP)), country, subtotal)
	for _, line := range cmd.Lines {
		fmt.Fprintf(&sb, "|%s:%d:%d", line.ProductID, line.Quantity, line.UnitPrice)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func copyStringMap(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
