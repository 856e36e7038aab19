package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutsvc "github.com/amerta-coffee/amerta-coffee-api/internal/checkout"
	"github.com/amerta-coffee/amerta-coffee-api/internal/orders"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
)

type stubCheckoutService struct {
	result      *checkoutsvc.Result
	err         error
	lastUser    uuid.UUID
	lastAddress uuid.UUID
}

func (s *stubCheckoutService) Checkout(ctx context.Context, userID, shippingAddressID uuid.UUID) (*checkoutsvc.Result, error) {
	s.lastUser = userID
	s.lastAddress = shippingAddressID
	return s.result, s.err
}

func TestCheckoutSuccess(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	orderID := uuid.New()
	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		Order: orders.OrderDTO{
			ID:                orderID,
			UserID:            userID,
			Status:            enums.OrderStatusPending,
			TotalPrice:        decimal.RequireFromString("120000"),
			ShippingAddressID: addressID,
		},
		Transaction: orders.TransactionDTO{
			NoInvoice: "INV-20261015-ABC123",
			Amount:    decimal.RequireFromString("120000"),
			Status:    enums.TransactionStatusPending,
		},
	}}

	body := `{"shipping_address_id":"` + addressID.String() + `"}`
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body), userID))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", resp.Code, resp.Body.String())
	}
	if svc.lastUser != userID || svc.lastAddress != addressID {
		t.Fatalf("service called with user=%s address=%s", svc.lastUser, svc.lastAddress)
	}

	var payload struct {
		Order struct {
			ID         uuid.UUID `json:"id"`
			TotalPrice string    `json:"total_price"`
		} `json:"order"`
		Transaction struct {
			NoInvoice string `json:"no_invoice"`
			Status    string `json:"status"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Order.ID != orderID || payload.Order.TotalPrice != "120000" {
		t.Fatalf("unexpected order payload %+v", payload.Order)
	}
	if payload.Transaction.NoInvoice != "INV-20261015-ABC123" || payload.Transaction.Status != "Pending" {
		t.Fatalf("unexpected transaction payload %+v", payload.Transaction)
	}
}

func TestCheckoutRequiresAddress(t *testing.T) {
	svc := &stubCheckoutService{}
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`), uuid.New()))

	expectErrorCode(t, resp, http.StatusBadRequest, string(pkgerrors.CodeValidation))
	if svc.lastUser != uuid.Nil {
		t.Fatalf("service should not be called")
	}
}

func TestCheckoutInsufficientStockDetails(t *testing.T) {
	productID := uuid.New()
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for Aceh Gayo (requested 2, available 1)").
		WithDetails([]checkoutsvc.StockShortage{{ProductID: productID, Name: "Aceh Gayo", Requested: 2, Available: 1}})}

	body := `{"shipping_address_id":"` + uuid.NewString() + `"}`
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body), uuid.New()))

	env := expectErrorCode(t, resp, http.StatusBadRequest, string(pkgerrors.CodeInsufficientStock))
	var shortages []checkoutsvc.StockShortage
	if err := json.Unmarshal(env.Error.Details, &shortages); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if len(shortages) != 1 || shortages[0].ProductID != productID || shortages[0].Available != 1 {
		t.Fatalf("unexpected shortages %+v", shortages)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")}
	body := `{"shipping_address_id":"` + uuid.NewString() + `"}`
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body), uuid.New()))
	expectErrorCode(t, resp, http.StatusBadRequest, string(pkgerrors.CodeEmptyCart))
}
