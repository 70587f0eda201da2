package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STRIPE_API_KEY": "sk_test_123",
		}),
	)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Shipping.Currency != "JPY" {
		t.Fatalf("expected default currency JPY, got %s", cfg.Shipping.Currency)
	}
	if cfg.Shipping.DefaultItemWeightGrams != 500 {
		t.Fatalf("expected default item weight 500g, got %d", cfg.Shipping.DefaultItemWeightGrams)
	}
	if cfg.Shipping.PackagingFeeBasisPoints != 50 {
		t.Fatalf("expected packaging fee 50bps, got %d", cfg.Shipping.PackagingFeeBasisPoints)
	}
	if cfg.Shipping.PackagingFeeMinimum != 200 {
		t.Fatalf("expected packaging fee minimum 200, got %d", cfg.Shipping.PackagingFeeMinimum)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("expected 24h idempotency TTL, got %s", cfg.Idempotency.TTL)
	}
	if cfg.PSP.DefaultProvider != "stripe" {
		t.Fatalf("expected stripe default provider, got %s", cfg.PSP.DefaultProvider)
	}
}

func TestLoadOverridesFromEnvMap(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STRIPE_API_KEY":                     "sk_test_123",
			"API_SERVER_PORT":                        "9090",
			"API_CHECKOUT_CURRENCY":                  "usd",
			"API_SHIPPING_DEFAULT_ITEM_WEIGHT_GRAMS": "750",
			"API_PACKAGING_FEE_MINIMUM":              "150",
			"API_IDEMPOTENCY_TTL":                    "1h",
		}),
	)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Shipping.Currency != "USD" {
		t.Fatalf("expected currency upper-cased to USD, got %s", cfg.Shipping.Currency)
	}
	if cfg.Shipping.DefaultItemWeightGrams != 750 {
		t.Fatalf("expected item weight 750g, got %d", cfg.Shipping.DefaultItemWeightGrams)
	}
	if cfg.Shipping.PackagingFeeMinimum != 150 {
		t.Fatalf("expected packaging minimum 150, got %d", cfg.Shipping.PackagingFeeMinimum)
	}
	if cfg.Idempotency.TTL != time.Hour {
		t.Fatalf("expected 1h TTL, got %s", cfg.Idempotency.TTL)
	}
}

func TestLoadRejectsMissingStripeKey(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected validation error for missing stripe key")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "psp.stripeApiKey" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected psp.stripeApiKey in invalid fields, got %v", validation.Fields())
	}
}

func TestLoadRejectsInvalidCurrency(t *testing.T) {
	_, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STRIPE_API_KEY":    "sk_test_123",
			"API_CHECKOUT_CURRENCY": "YENS",
		}),
	)
	if err == nil {
		t.Fatalf("expected validation error for 4-letter currency")
	}
}
