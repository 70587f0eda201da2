package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/northwind-goods/api/internal/domain"
	"github.com/northwind-goods/api/internal/payments"
)

type fakePaymentManager struct {
	lastCtx payments.PaymentContext
	lastReq payments.CheckoutSessionRequest
	session payments.CheckoutSession
	err     error
	calls   int
}

func (f *fakePaymentManager) CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	f.calls++
	f.lastCtx = paymentCtx
	f.lastReq = req
	return f.session, f.err
}

func newTestCheckoutService(t *testing.T, manager *fakePaymentManager) CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Engine:   newTestEngine(t),
		Payments: manager,
		Currency: "JPY",
		Clock: func() time.Time {
			return time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return svc
}

func validCheckoutCommand() CreateCheckoutSessionCommand {
	return CreateCheckoutSessionCommand{
		Lines: []domain.CartLine{
			{ProductID: "p1", Name: "Ceramic mug", Quantity: 2, UnitPrice: 1500, UnitWeightGrams: 1000},
		},
		Country:    "JP",
		SuccessURL: "https://shop.example.com/thanks",
		CancelURL:  "https://shop.example.com/cart",
	}
}

func TestCreateCheckoutSessionBuildsPayload(t *testing.T) {
	manager := &fakePaymentManager{session: payments.CheckoutSession{
		ID:           "cs_123",
		Provider:     "stripe",
		ClientSecret: "secret",
		RedirectURL:  "https://checkout.stripe.com/pay/cs_123",
		ExpiresAt:    time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC),
	}}
	svc := newTestCheckoutService(t, manager)

	session, err := svc.CreateCheckoutSession(context.Background(), validCheckoutCommand())
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}

	if session.SessionID != "cs_123" || session.PSP != "stripe" {
		t.Fatalf("unexpected session %+v", session)
	}

	req := manager.lastReq
	// Subtotal 3000 plus the packaging floor 200.
	if req.Amount != 3200 {
		t.Fatalf("expected amount 3200, got %d", req.Amount)
	}
	if req.Currency != "JPY" {
		t.Fatalf("expected JPY request, got %q", req.Currency)
	}
	if req.IdempotencyKey == "" {
		t.Fatalf("expected derived idempotency key")
	}

	if len(req.Items) != 2 {
		t.Fatalf("expected cart line plus packaging fee, got %d items", len(req.Items))
	}
	if req.Items[0].Name != "Ceramic mug" || req.Items[0].Quantity != 2 || req.Items[0].Amount != 1500 {
		t.Fatalf("unexpected first item %+v", req.Items[0])
	}
	fee := req.Items[len(req.Items)-1]
	if fee.Name != "Packaging fee" || fee.Quantity != 1 || fee.Amount != 200 {
		t.Fatalf("unexpected packaging fee item %+v", fee)
	}

	if len(req.ShippingOptions) != 2 {
		t.Fatalf("expected standard and express options, got %d", len(req.ShippingOptions))
	}
	standard := req.ShippingOptions[0]
	if standard.Amount != 600 || standard.DisplayName != "Standard shipping" {
		t.Fatalf("unexpected standard option %+v", standard)
	}
	if standard.MinDeliveryDays != 2 || standard.MaxDeliveryDays != 4 {
		t.Fatalf("unexpected standard window %d-%d", standard.MinDeliveryDays, standard.MaxDeliveryDays)
	}
	if standard.Metadata["shipping_type"] != "standard" {
		t.Fatalf("unexpected shipping_type %q", standard.Metadata["shipping_type"])
	}
	if standard.Metadata["weight"] != "2.00kg" {
		t.Fatalf("unexpected weight metadata %q", standard.Metadata["weight"])
	}
	if standard.Metadata["zone"] != "Domestic" {
		t.Fatalf("unexpected zone metadata %q", standard.Metadata["zone"])
	}
	express := req.ShippingOptions[1]
	if express.Amount != 1200 || express.Metadata["shipping_type"] != "express" {
		t.Fatalf("unexpected express option %+v", express)
	}

	if req.Metadata["shipping_zone"] != "Domestic" {
		t.Fatalf("expected zone in payment metadata, got %q", req.Metadata["shipping_zone"])
	}
	if req.Metadata["packaging_fee"] != "200" {
		t.Fatalf("expected packaging fee metadata, got %q", req.Metadata["packaging_fee"])
	}
}

func TestCreateCheckoutSessionOffersSingleFreeOption(t *testing.T) {
	manager := &fakePaymentManager{session: payments.CheckoutSession{ID: "cs_free", Provider: "stripe"}}
	svc := newTestCheckoutService(t, manager)

	cmd := validCheckoutCommand()
	cmd.Lines[0].UnitPrice = 6000 // subtotal 12000 clears the domestic threshold

	if _, err := svc.CreateCheckoutSession(context.Background(), cmd); err != nil {
		t.Fatalf("create checkout session: %v", err)
	}

	options := manager.lastReq.ShippingOptions
	if len(options) != 1 {
		t.Fatalf("expected single free option, got %d", len(options))
	}
	if options[0].Amount != 0 || options[0].DisplayName != "Free shipping" {
		t.Fatalf("unexpected free option %+v", options[0])
	}
	if options[0].Metadata["shipping_type"] != "free" {
		t.Fatalf("unexpected free metadata %+v", options[0].Metadata)
	}
	if manager.lastReq.Metadata["free_shipping"] != "true" {
		t.Fatalf("expected free_shipping metadata flag")
	}
}

func TestCreateCheckoutSessionHonoursSubtotalOverride(t *testing.T) {
	manager := &fakePaymentManager{session: payments.CheckoutSession{ID: "cs_1", Provider: "stripe"}}
	svc := newTestCheckoutService(t, manager)

	override := int64(12000)
	cmd := validCheckoutCommand()
	cmd.Subtotal = &override

	if _, err := svc.CreateCheckoutSession(context.Background(), cmd); err != nil {
		t.Fatalf("create checkout session: %v", err)
	}

	// Packaging fee still floors at 200 for a 12000 subtotal.
	if manager.lastReq.Amount != 12200 {
		t.Fatalf("expected amount from override (12200), got %d", manager.lastReq.Amount)
	}
	if len(manager.lastReq.ShippingOptions) != 1 {
		t.Fatalf("expected free shipping with overridden subtotal, got %d options", len(manager.lastReq.ShippingOptions))
	}
}

func TestCreateCheckoutSessionRejectsInvalidInput(t *testing.T) {
	manager := &fakePaymentManager{}
	svc := newTestCheckoutService(t, manager)

	cases := []struct {
		name   string
		mutate func(*CreateCheckoutSessionCommand)
	}{
		{"empty cart", func(c *CreateCheckoutSessionCommand) { c.Lines = nil }},
		{"zero quantity", func(c *CreateCheckoutSessionCommand) { c.Lines[0].Quantity = 0 }},
		{"negative price", func(c *CreateCheckoutSessionCommand) { c.Lines[0].UnitPrice = -1 }},
		{"missing country", func(c *CreateCheckoutSessionCommand) { c.Country = " " }},
		{"negative subtotal", func(c *CreateCheckoutSessionCommand) {
			negative := int64(-5)
			c.Subtotal = &negative
		}},
		{"missing success url", func(c *CreateCheckoutSessionCommand) { c.SuccessURL = "" }},
		{"missing cancel url", func(c *CreateCheckoutSessionCommand) { c.CancelURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validCheckoutCommand()
			tc.mutate(&cmd)
			if _, err := svc.CreateCheckoutSession(context.Background(), cmd); !errors.Is(err, ErrCheckoutInvalidInput) {
				t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
			}
		})
	}
	if manager.calls != 0 {
		t.Fatalf("payment manager must not be called for invalid input")
	}
}

func TestCreateCheckoutSessionDerivesStableIdempotencyKey(t *testing.T) {
	manager := &fakePaymentManager{session: payments.CheckoutSession{ID: "cs_1", Provider: "stripe"}}
	svc := newTestCheckoutService(t, manager)

	if _, err := svc.CreateCheckoutSession(context.Background(), validCheckoutCommand()); err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	first := manager.lastReq.IdempotencyKey

	if _, err := svc.CreateCheckoutSession(context.Background(), validCheckoutCommand()); err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if manager.lastReq.IdempotencyKey != first {
		t.Fatalf("identical commands must derive the same idempotency key")
	}

	cmd := validCheckoutCommand()
	cmd.Lines[0].Quantity = 3
	if _, err := svc.CreateCheckoutSession(context.Background(), cmd); err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if manager.lastReq.IdempotencyKey == first {
		t.Fatalf("different carts must derive different idempotency keys")
	}
}

func TestCreateCheckoutSessionUsesSuppliedIdempotencyKey(t *testing.T) {
	manager := &fakePaymentManager{session: payments.CheckoutSession{ID: "cs_1", Provider: "stripe"}}
	svc := newTestCheckoutService(t, manager)

	cmd := validCheckoutCommand()
	cmd.IdempotencyKey = "client-key-42"
	if _, err := svc.CreateCheckoutSession(context.Background(), cmd); err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if manager.lastReq.IdempotencyKey != "client-key-42" {
		t.Fatalf("expected caller key, got %q", manager.lastReq.IdempotencyKey)
	}
}

func TestCreateCheckoutSessionMapsProviderErrors(t *testing.T) {
	manager := &fakePaymentManager{err: payments.ErrUnsupportedProvider}
	svc := newTestCheckoutService(t, manager)
	if _, err := svc.CreateCheckoutSession(context.Background(), validCheckoutCommand()); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected invalid input for unsupported provider, got %v", err)
	}

	manager.err = errors.New("psp down")
	if _, err := svc.CreateCheckoutSession(context.Background(), validCheckoutCommand()); !errors.Is(err, ErrCheckoutPaymentFailed) {
		t.Fatalf("expected payment failure, got %v", err)
	}
}

func TestNewCheckoutServiceValidatesDeps(t *testing.T) {
	if _, err := NewCheckoutService(CheckoutServiceDeps{Payments: &fakePaymentManager{}}); err == nil {
		t.Fatalf("expected error without engine")
	}
	if _, err := NewCheckoutService(CheckoutServiceDeps{Engine: newTestEngine(t)}); err == nil {
		t.Fatalf("expected error without payment manager")
	}
}
