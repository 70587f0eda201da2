package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/northwind-goods/api/internal/domain"
	"github.com/northwind-goods/api/internal/services"
)

type stubQuoteService struct {
	quoteFunc func(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error)
}

func (s *stubQuoteService) QuoteShipping(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error) {
	if s.quoteFunc != nil {
		return s.quoteFunc(ctx, cmd)
	}
	return services.ShippingQuote{}, nil
}

func sampleQuote() services.ShippingQuote {
	return services.ShippingQuote{
		QuoteID:      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Currency:     "JPY",
		Subtotal:     3000,
		PackagingFee: 200,
		Result: domain.PricingResult{
			Zone:                   "Domestic",
			WeightKilograms:        2,
			Dimensions:             domain.Dimensions{Length: 40, Width: 25, Height: 18},
			VolumeCubicCentimetres: 18000,
			Standard: domain.RateQuote{
				Cost: 600, MinDays: 2, MaxDays: 4,
				Label: "Standard shipping", Method: domain.ShippingMethodStandard,
			},
			Express: domain.RateQuote{
				Cost: 1200, MinDays: 1, MaxDays: 2,
				Label: "Express shipping", Method: domain.ShippingMethodExpress,
			},
			FreeShippingThreshold: 10000,
		},
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestShippingHandlersQuoteSuccess(t *testing.T) {
	router := chi.NewRouter()
	var captured services.ShippingQuoteCommand
	service := &stubQuoteService{
		quoteFunc: func(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error) {
			captured = cmd
			return sampleQuote(), nil
		},
	}
	NewShippingHandlers(service).Routes(router)

	payload := `{"country":"jp","items":[{"productId":"p1","name":"Mug","quantity":2,"unitPrice":1500,"weightGrams":1000}]}`
	req := httptest.NewRequest(http.MethodPost, "/shipping/quote", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Country != "jp" {
		t.Fatalf("expected country propagated, got %q", captured.Country)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].UnitWeightGrams != 1000 {
		t.Fatalf("unexpected captured lines %#v", captured.Lines)
	}

	var resp shippingQuoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.QuoteID != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Fatalf("unexpected quote id %q", resp.QuoteID)
	}
	if resp.Zone != "Domestic" || resp.PackagingFee != 200 {
		t.Fatalf("unexpected quote payload %+v", resp)
	}
	if resp.Dimensions.Length != 40 || resp.VolumeCm3 != 18000 {
		t.Fatalf("unexpected dimensions in payload %+v", resp)
	}
	if len(resp.ShippingOptions) != 2 {
		t.Fatalf("expected 2 shipping options, got %d", len(resp.ShippingOptions))
	}
	standard := resp.ShippingOptions[0]
	if standard.Amount != 600 || standard.DisplayName != "Standard shipping" {
		t.Fatalf("unexpected standard option %+v", standard)
	}
	if standard.DeliveryEstimate.MinimumDays != 2 || standard.DeliveryEstimate.MaximumDays != 4 {
		t.Fatalf("unexpected estimate %+v", standard.DeliveryEstimate)
	}
	if standard.Metadata["shipping_type"] != "standard" || standard.Metadata["zone"] != "Domestic" {
		t.Fatalf("unexpected metadata %+v", standard.Metadata)
	}
	if standard.Metadata["weight"] != "2.00kg" {
		t.Fatalf("unexpected weight metadata %q", standard.Metadata["weight"])
	}
}

func TestShippingHandlersQuoteFreeShipping(t *testing.T) {
	router := chi.NewRouter()
	service := &stubQuoteService{
		quoteFunc: func(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error) {
			quote := sampleQuote()
			quote.Result.FreeShipping = true
			quote.Result.Standard.Cost = 0
			quote.Result.Express.Cost = 0
			return quote, nil
		},
	}
	NewShippingHandlers(service).Routes(router)

	payload := `{"country":"JP","items":[{"quantity":1,"unitPrice":12000}]}`
	req := httptest.NewRequest(http.MethodPost, "/shipping/quote", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp shippingQuoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.FreeShipping {
		t.Fatalf("expected freeShipping flag")
	}
	if len(resp.ShippingOptions) != 1 {
		t.Fatalf("expected single free option, got %d", len(resp.ShippingOptions))
	}
	if resp.ShippingOptions[0].Amount != 0 || resp.ShippingOptions[0].Metadata["shipping_type"] != "free" {
		t.Fatalf("unexpected free option %+v", resp.ShippingOptions[0])
	}
}

func TestShippingHandlersQuoteValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		status  int
	}{
		{"missing country", `{"items":[{"quantity":1,"unitPrice":100}]}`, http.StatusBadRequest},
		{"zero quantity", `{"country":"JP","items":[{"quantity":0,"unitPrice":100}]}`, http.StatusBadRequest},
		{"negative price", `{"country":"JP","items":[{"quantity":1,"unitPrice":-5}]}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := chi.NewRouter()
			called := false
			service := &stubQuoteService{
				quoteFunc: func(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error) {
					called = true
					return sampleQuote(), nil
				},
			}
			NewShippingHandlers(service).Routes(router)

			req := httptest.NewRequest(http.MethodPost, "/shipping/quote", bytes.NewBufferString(tc.payload))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if called {
				t.Fatalf("quote service must not be called for invalid request")
			}
		})
	}
}

func TestShippingHandlersQuoteServiceError(t *testing.T) {
	router := chi.NewRouter()
	service := &stubQuoteService{
		quoteFunc: func(ctx context.Context, cmd services.ShippingQuoteCommand) (services.ShippingQuote, error) {
			return services.ShippingQuote{}, services.ErrShippingQuoteInvalidInput
		},
	}
	NewShippingHandlers(service).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/shipping/quote", bytes.NewBufferString(`{"country":"JP","items":[{"quantity":1,"unitPrice":1}]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
