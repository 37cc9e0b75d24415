package controllers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"texus-backend/utils"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// A half-configured gateway must refuse checkout outright rather than hand
// out relative redirect URLs.
func TestCheckoutRequiresFullGatewayEnv(t *testing.T) {
	t.Setenv("SECRET", "test-secret")
	t.Setenv("MERCHANT_ID", "M123")
	t.Setenv("MERCHANT_ACCESS_CODE", "AC123")
	t.Setenv("MERCHANT_WORKING_KEY", "0123456789ABCDEF")
	t.Setenv("GATEWAY_URL", "https://secure.gateway.example")
	t.Setenv("HOST_URL", "")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	pc := &PaymentController{}

	intent, err := utils.SignPaymentIntent(utils.PaymentIntent{
		UserID: 7, EventID: 1, Team: []string{"TXS00001"}, Amount: 650, OrderID: "order-abc",
	})
	if err != nil {
		t.Fatalf("sign intent: %v", err)
	}

	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(7).WillReturnRows(userRow(7, "TXS00001"))

	req := httptest.NewRequest("GET", "/payments/checkout?intent="+url.QueryEscape(intent), nil)
	req.Header.Set("Authorization", bearerFor(t, 7))
	rr := httptest.NewRecorder()
	pc.Checkout(db)(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Payments are temporarily unavailable") {
		t.Errorf("body = %s, want unavailable message", rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCheckoutRejectsForeignIntent(t *testing.T) {
	t.Setenv("SECRET", "test-secret")

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	pc := &PaymentController{}

	intent, err := utils.SignPaymentIntent(utils.PaymentIntent{UserID: 99, EventID: 1, OrderID: "o"})
	if err != nil {
		t.Fatalf("sign intent: %v", err)
	}

	req := httptest.NewRequest("GET", "/payments/checkout?intent="+url.QueryEscape(intent), nil)
	req.Header.Set("Authorization", bearerFor(t, 7))
	rr := httptest.NewRecorder()
	pc.Checkout(db)(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400 for an intent signed for another user", rr.Code)
	}
}
