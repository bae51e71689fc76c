package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"automatch/internal/db"
	"automatch/internal/services"

	"github.com/lib/pq"
)

func TestRespondServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInsufficientFunds, http.StatusConflict, "insufficient_credits"},
		{services.ErrDealerBlocked, http.StatusForbidden, "dealer_blocked"},
		{services.ErrUnknownDealer, http.StatusNotFound, "dealer_not_found"},
		{services.ErrLeadNotFound, http.StatusNotFound, "lead_not_found"},
		{services.ErrUnknownPackage, http.StatusBadRequest, "unknown_package"},
		{fmt.Errorf("%w: gateway timeout", services.ErrPaymentFailed), http.StatusPaymentRequired, "payment_failed"},
		{fmt.Errorf("insert entry: %w", &pq.Error{Code: "23505"}), http.StatusConflict, "duplicate_request"},
		{services.ErrSelfDeactivation, http.StatusConflict, "self_deactivation"},
		{db.ErrRetryLimit, http.StatusServiceUnavailable, "busy"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		respondServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body["error"] != tc.code {
			t.Fatalf("%v: expected %q, got %q", tc.err, tc.code, body["error"])
		}
	}
}

func TestRespondServiceErrorValidationField(t *testing.T) {
	rr := httptest.NewRecorder()
	respondServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), services.ValidationError{Field: "buyer_email", Reason: "email"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["error"] != "validation_failed" || body["field"] != "buyer_email" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPagination(t *testing.T) {
	cases := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 50, 0},
		{"?limit=10&page=3", 10, 20},
		{"?limit=-1&page=abc", 50, 0},
		{"?limit=1000", 200, 0},
	}
	for _, tc := range cases {
		limit, offset := pagination(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil))
		if limit != tc.limit || offset != tc.offset {
			t.Fatalf("%q: expected %d/%d, got %d/%d", tc.query, tc.limit, tc.offset, limit, offset)
		}
	}
}

func TestHealth(t *testing.T) {
	rr := serve(t, newTestHandler(testDeps{}), http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
