package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRouterHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, rr.Code)
		}
		var payload map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s: invalid JSON response: %v", path, err)
		}
		if payload["status"] != "ok" {
			t.Fatalf("%s: expected ok status, got %v", path, payload["status"])
		}
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON error envelope: %v", err)
	}
	if payload["error"] != errorNotFoundCode {
		t.Fatalf("expected %s code, got %v", errorNotFoundCode, payload["error"])
	}
	if payload["status"] != float64(http.StatusNotFound) {
		t.Fatalf("expected status field in envelope, got %v", payload["status"])
	}
}

func TestRouterMountsShippingRoutes(t *testing.T) {
	registered := false
	router := NewRouter(WithShippingRoutes(func(r chi.Router) {
		registered = true
		r.Post("/shipping/quote", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	}))

	if !registered {
		t.Fatalf("expected shipping registrar to run")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/quote", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected registrar handler to serve, got %d", rr.Code)
	}
}

func TestRouterAppliesCheckoutMiddleware(t *testing.T) {
	sawHeader := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawHeader = true
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(
		WithCheckoutRoutes(func(r chi.Router) {
			r.Post("/checkout/session", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithCheckoutMiddlewares(mw),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !sawHeader {
		t.Fatalf("expected checkout middleware to run")
	}
}

func TestRouterNotImplementedGroups(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501 for unwired group, got %d", rr.Code)
	}
}
