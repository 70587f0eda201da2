package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/northwind-goods/api/internal/domain"
	"github.com/northwind-goods/api/internal/platform/httpx"
	"github.com/northwind-goods/api/internal/services"
)

const maxShippingRequestBody = 64 * 1024

// ShippingHandlers exposes the shipping quote endpoint.
type ShippingHandlers struct {
	quotes services.ShippingQuoteService
}

// NewShippingHandlers constructs shipping handlers over the quote service.
func NewShippingHandlers(quotes services.ShippingQuoteService) *ShippingHandlers {
	return &ShippingHandlers{quotes: quotes}
}

// Routes registers shipping endpoints under the provided router.
func (h *ShippingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/shipping/quote", h.quoteShipping)
}

type cartLineRequest struct {
	ProductID   string             `json:"productId"`
	Name        string             `json:"name"`
	Quantity    int                `json:"quantity"`
	UnitPrice   int64              `json:"unitPrice"`
	WeightGrams int                `json:"weightGrams,omitempty"`
	Weight      string             `json:"weight,omitempty"`
	Dimensions  *dimensionsRequest `json:"dimensions,omitempty"`
	ImageURL    string             `json:"imageUrl,omitempty"`
}

type dimensionsRequest struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type shippingQuoteRequest struct {
	Items    []cartLineRequest `json:"items"`
	Country  string            `json:"country"`
	Subtotal *int64            `json:"subtotal,omitempty"`
}

// shippingOptionResponse mirrors the PSP shipping-option payload so clients
// can preview exactly what checkout will offer.
type shippingOptionResponse struct {
	Amount           int64                    `json:"amount"`
	Currency         string                   `json:"currency"`
	DisplayName      string                   `json:"display_name"`
	DeliveryEstimate deliveryEstimateResponse `json:"delivery_estimate"`
	Metadata         map[string]string        `json:"metadata"`
}

type deliveryEstimateResponse struct {
	MinimumDays int `json:"minimum_days"`
	MaximumDays int `json:"maximum_days"`
}

type shippingQuoteResponse struct {
	QuoteID         string                   `json:"quoteId"`
	Currency        string                   `json:"currency"`
	Zone            string                   `json:"zone"`
	WeightKilograms float64                  `json:"weightKg"`
	Dimensions      dimensionsRequest        `json:"dimensions"`
	VolumeCm3       float64                  `json:"volumeCm3"`
	Subtotal        int64                    `json:"subtotal"`
	PackagingFee    int64                    `json:"packagingFee"`
	FreeShipping    bool                     `json:"freeShipping"`
	ShippingOptions []shippingOptionResponse `json:"shippingOptions"`
	CreatedAt       string                   `json:"createdAt,omitempty"`
}

func (h *ShippingHandlers) quoteShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "shipping quote service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxShippingRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req shippingQuoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	country := strings.TrimSpace(req.Country)
	if country == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "country is required", http.StatusBadRequest))
		return
	}
	lines, err := cartLinesFromRequest(req.Items)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	if req.Subtotal != nil && *req.Subtotal < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subtotal must not be negative", http.StatusBadRequest))
		return
	}

	quote, err := h.quotes.QuoteShipping(ctx, services.ShippingQuoteCommand{
		Lines:    lines,
		Country:  country,
		Subtotal: req.Subtotal,
	})
	if err != nil {
		h.writeShippingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildShippingQuoteResponse(quote))
}

func cartLinesFromRequest(items []cartLineRequest) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("items[%d].quantity must be at least 1", i)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("items[%d].unitPrice must not be negative", i)
		}
		line := domain.CartLine{
			ProductID:       strings.TrimSpace(item.ProductID),
			Name:            strings.TrimSpace(item.Name),
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			UnitWeightGrams: item.WeightGrams,
			UnitWeightRaw:   strings.TrimSpace(item.Weight),
			ImageURL:        strings.TrimSpace(item.ImageURL),
		}
		if item.Dimensions != nil {
			line.UnitDimensions = &domain.Dimensions{
				Length: item.Dimensions.Length,
				Width:  item.Dimensions.Width,
				Height: item.Dimensions.Height,
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func buildShippingQuoteResponse(quote services.ShippingQuote) shippingQuoteResponse {
	resp := shippingQuoteResponse{
		QuoteID:         quote.QuoteID,
		Currency:        quote.Currency,
		Zone:            quote.Result.Zone,
		WeightKilograms: quote.Result.WeightKilograms,
		Dimensions: dimensionsRequest{
			Length: quote.Result.Dimensions.Length,
			Width:  quote.Result.Dimensions.Width,
			Height: quote.Result.Dimensions.Height,
		},
		VolumeCm3:    quote.Result.VolumeCubicCentimetres,
		Subtotal:     quote.Subtotal,
		PackagingFee: quote.PackagingFee,
		FreeShipping: quote.Result.FreeShipping,
		CreatedAt:    formatTime(quote.CreatedAt),
	}
	for _, option := range quote.Result.ShippingOptions() {
		resp.ShippingOptions = append(resp.ShippingOptions, shippingOptionResponse{
			Amount:      option.Cost,
			Currency:    quote.Currency,
			DisplayName: option.Label,
			DeliveryEstimate: deliveryEstimateResponse{
				MinimumDays: option.MinDays,
				MaximumDays: option.MaxDays,
			},
			Metadata: map[string]string{
				"shipping_type": string(option.Method),
				"weight":        fmt.Sprintf("%.2fkg", quote.Result.WeightKilograms),
				"zone":          quote.Result.Zone,
			},
		})
	}
	return resp
}

func (h *ShippingHandlers) writeShippingError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrShippingQuoteInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShippingQuoteUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "shipping quote service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("shipping_error", "failed to compute shipping quote", http.StatusInternalServerError))
	}
}
