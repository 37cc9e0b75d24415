package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"texus-backend/models"
	"texus-backend/utils"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
)

func bearerFor(t *testing.T, userID int) string {
	t.Helper()
	token, err := utils.GenerateToken(models.User{ID: userID, Email: "user@college.edu"}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func userRow(id int, texusID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "texus_id", "name", "email", "phone", "register_no", "department", "college", "year", "avatar_url"}).
		AddRow(id, texusID, "Priya S", "user@college.edu", "", "", "", "", 1, "")
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

// TestRegisterTeamLastSlotSerializes pins the lock-ordering contract for
// the last slot: the event row is locked FOR UPDATE before the capacity
// count, so of two submissions racing at count == slots-1 the first takes
// the slot and the second sees the committed count and gets Event Full.
func TestRegisterTeamLastSlotSerializes(t *testing.T) {
	t.Setenv("SECRET", "test-secret")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rc := &RegistrationController{}
	eventCols := []string{"id", "name", "fee", "min_participants", "max_participants", "slots"}

	// first submission wins the last slot
	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(7).WillReturnRows(userRow(7, "TXS00001"))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM events WHERE id = \? FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(1, "Robo Wars", 700, 1, 1, 2))
	mock.ExpectQuery(`FROM users WHERE texus_id = \?`).WithArgs("TXS00001").WillReturnRows(countRow(1))
	mock.ExpectQuery(`JSON_CONTAINS`).WithArgs(1, "TXS00001").WillReturnRows(countRow(0))
	mock.ExpectQuery(`FROM registrations WHERE event_id = \?$`).WithArgs(1).WillReturnRows(countRow(1))
	mock.ExpectExec(`INSERT INTO registrations`).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	first := httptest.NewRequest("POST", "/registrations", strings.NewReader(`{"event_id":1,"team":["TXS00001"]}`))
	first.Header.Set("Authorization", bearerFor(t, 7))
	rr := httptest.NewRecorder()
	rc.RegisterTeam(db)(rr, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("first submission: status %d, body %s", rr.Code, rr.Body.String())
	}

	// second submission: the lock forces its capacity count to run after
	// the first commit, so it sees count == slots and is rejected
	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(8).WillReturnRows(userRow(8, "TXS00002"))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM events WHERE id = \? FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(1, "Robo Wars", 700, 1, 1, 2))
	mock.ExpectQuery(`FROM users WHERE texus_id = \?`).WithArgs("TXS00002").WillReturnRows(countRow(1))
	mock.ExpectQuery(`JSON_CONTAINS`).WithArgs(1, "TXS00002").WillReturnRows(countRow(0))
	mock.ExpectQuery(`FROM registrations WHERE event_id = \?$`).WithArgs(1).WillReturnRows(countRow(2))
	mock.ExpectRollback()

	second := httptest.NewRequest("POST", "/registrations", strings.NewReader(`{"event_id":1,"team":["TXS00002"]}`))
	second.Header.Set("Authorization", bearerFor(t, 8))
	rr = httptest.NewRecorder()
	rc.RegisterTeam(db)(rr, second)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("second submission: status %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Event Full") {
		t.Errorf("second submission body = %s, want Event Full", rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("lock ordering not honored: %v", err)
	}
}

func TestReissueIntentForPendingRegistration(t *testing.T) {
	t.Setenv("SECRET", "test-secret")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rc := &RegistrationController{}
	regCols := []string{"id", "event_id", "team", "amount", "referral_code", "order_id", "payment_status"}

	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(7).WillReturnRows(userRow(7, "TXS00001"))
	mock.ExpectQuery(`FROM registrations WHERE id = \?`).WithArgs(11).
		WillReturnRows(sqlmock.NewRows(regCols).
			AddRow(11, 1, `["TXS00001","TXS00002"]`, 650, "REF2026", "order-abc", models.PaymentPending))

	req := httptest.NewRequest("POST", "/registrations/11/intent", nil)
	req.Header.Set("Authorization", bearerFor(t, 7))
	req = mux.SetURLVars(req, map[string]string{"id": "11"})
	rr := httptest.NewRecorder()
	rc.ReissueIntent(db)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		OrderID       string `json:"order_id"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	intent, err := utils.VerifyPaymentIntent(resp.PaymentIntent, 7)
	if err != nil {
		t.Fatalf("reissued intent does not verify: %v", err)
	}
	if intent.OrderID != "order-abc" || intent.Amount != 650 || intent.EventID != 1 {
		t.Errorf("reissued intent fields wrong: %+v", intent)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReissueIntentRejectsOutsiderAndSettledOrders(t *testing.T) {
	t.Setenv("SECRET", "test-secret")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rc := &RegistrationController{}
	regCols := []string{"id", "event_id", "team", "amount", "referral_code", "order_id", "payment_status"}

	// caller is not on the team
	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(9).WillReturnRows(userRow(9, "TXS00099"))
	mock.ExpectQuery(`FROM registrations WHERE id = \?`).WithArgs(11).
		WillReturnRows(sqlmock.NewRows(regCols).
			AddRow(11, 1, `["TXS00001"]`, 700, "", "order-abc", models.PaymentPending))

	req := httptest.NewRequest("POST", "/registrations/11/intent", nil)
	req.Header.Set("Authorization", bearerFor(t, 9))
	req = mux.SetURLVars(req, map[string]string{"id": "11"})
	rr := httptest.NewRecorder()
	rc.ReissueIntent(db)(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("outsider: status %d, want 403", rr.Code)
	}

	// order already settled
	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(7).WillReturnRows(userRow(7, "TXS00001"))
	mock.ExpectQuery(`FROM registrations WHERE id = \?`).WithArgs(11).
		WillReturnRows(sqlmock.NewRows(regCols).
			AddRow(11, 1, `["TXS00001"]`, 700, "", "order-abc", models.PaymentCompleted))

	req = httptest.NewRequest("POST", "/registrations/11/intent", nil)
	req.Header.Set("Authorization", bearerFor(t, 7))
	req = mux.SetURLVars(req, map[string]string{"id": "11"})
	rr = httptest.NewRecorder()
	rc.ReissueIntent(db)(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("settled order: status %d, want 400", rr.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
