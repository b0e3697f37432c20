package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// helper для создания базового заказа с двумя позициями на 25.00.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Status: domain.OrderStatusPending,
		Total:  decimal.RequireFromString("25.00"),
		Lines: []domain.OrderLine{
			{ID: "line-1", ProductID: "A", ProductName: "Alpha", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ID: "line-2", ProductID: "B", ProductName: "Beta", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{name: "no user", mut: func(o *domain.Order) { o.UserID = "" }, want: domain.ErrUserRequired},
		{name: "no lines", mut: func(o *domain.Order) { o.Lines = nil; o.Total = decimal.Zero }, want: domain.ErrLinesRequired},
		{name: "negative total", mut: func(o *domain.Order) { o.Total = decimal.NewFromInt(-1) }, want: domain.ErrTotalNegative},
		{name: "zero quantity", mut: func(o *domain.Order) { o.Lines[0].Quantity = 0 }, want: domain.ErrQuantityInvalid},
		{name: "negative price", mut: func(o *domain.Order) { o.Lines[1].UnitPrice = decimal.NewFromInt(-5) }, want: domain.ErrPriceInvalid},
		{name: "total mismatch", mut: func(o *domain.Order) { o.Total = decimal.RequireFromString("24.99") }, want: domain.ErrTotalMismatch},
		{name: "unknown status", mut: func(o *domain.Order) { o.Status = "CANCELLED" }, want: domain.ErrStatusInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			errs := order.ValidateInvariants()
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestLinesTotalUsesExactDecimal(t *testing.T) {
	lines := []domain.OrderLine{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("0.20")},
	}
	if got := domain.LinesTotal(lines); !got.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("expected 0.50, got %s", got)
	}
}

func TestParsePaymentMethod(t *testing.T) {
	cases := []struct {
		raw     string
		want    domain.PaymentMethod
		wantNil bool
		wantErr bool
	}{
		{raw: "CARD", want: domain.PaymentMethodCard},
		{raw: "carte", want: domain.PaymentMethodCard},
		{raw: " Cash ", want: domain.PaymentMethodCash},
		{raw: "ESPECES", want: domain.PaymentMethodCash},
		{raw: "", wantNil: true},
		{raw: "bitcoin", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := domain.ParsePaymentMethod(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrPaymentMethodInvalid) {
					t.Fatalf("expected ErrPaymentMethodInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantNil {
				if got != nil {
					t.Fatalf("expected nil method, got %v", *got)
				}
				return
			}
			if got == nil || *got != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, got)
			}
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := domain.ParseOrderStatus("shipped")
	if err != nil || status != domain.OrderStatusShipped {
		t.Fatalf("expected SHIPPED, got %q (%v)", status, err)
	}
	if _, err := domain.ParseOrderStatus("lost"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewConfirmedPayment(t *testing.T) {
	order := makeOrder()
	method := domain.PaymentMethodCard
	order.PaymentMethod = &method
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	payment := domain.NewConfirmedPayment("pay-1", order, at)
	if payment.OrderID != order.ID || !payment.Amount.Equal(order.Total) {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if payment.Status != domain.PaymentStatusConfirmed || payment.Method == nil || *payment.Method != method {
		t.Fatalf("unexpected payment status/method %+v", payment)
	}
}
