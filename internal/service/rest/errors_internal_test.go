package rest

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"empty cart", domain.ErrEmptyCart, http.StatusUnprocessableEntity, "EMPTY_CART", false},
		{"insufficient stock", &domain.InsufficientStockError{ProductID: "p1"}, http.StatusConflict, "INSUFFICIENT_STOCK", false},
		{"stock conflict", fmt.Errorf("reserve: %w", domain.ErrStockConflict), http.StatusConflict, "STOCK_CONFLICT", true},
		{"not found", domain.ErrOrderNotFound, http.StatusNotFound, "NOT_FOUND", false},
		{"persistence", domain.ErrPersistence, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE", true},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION", false},
		{"validation", domain.ErrQuantityInvalid, http.StatusBadRequest, "INVALID_ARGUMENT", false},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "INTERNAL", false},
		{"unauthenticated", fmt.Errorf("%w: expired", auth.ErrUnauthenticated), http.StatusUnauthorized, codeUnauthenticated, false},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, codeForbidden, false},
		{"hash mismatch", domain.ErrIdempotencyHashMismatch, http.StatusUnprocessableEntity, codeIdempotencyConflict, false},
		{"in progress", idempotency.ErrInProgress, http.StatusConflict, codeRequestInProgress, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, status)
			}
			if body.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, body.Code)
			}
			if body.Retryable != tt.retryable {
				t.Fatalf("expected retryable=%v, got %v", tt.retryable, body.Retryable)
			}
		})
	}
}

func TestErrorResponse_HidesInternalMessage(t *testing.T) {
	_, body := errorResponse(errors.New("pq: connection string leaked"))
	if body.Message != "internal error" {
		t.Fatalf("expected masked message, got %q", body.Message)
	}
}

func TestErrorResponse_ProductID(t *testing.T) {
	_, body := errorResponse(fmt.Errorf("checkout: %w", &domain.InsufficientStockError{ProductID: "sku-9"}))
	if body.ProductID != "sku-9" {
		t.Fatalf("expected product id sku-9, got %q", body.ProductID)
	}
}
