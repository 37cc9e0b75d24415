package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

// The musical-night flow serializes on a locked phase row the same way
// team registration serializes on the event row: the phase lock is taken
// before the duplicate and capacity counts, so check-then-insert is atomic.

func TestMusicalNightRegisterRejectsDuplicatePhase(t *testing.T) {
	t.Setenv("SECRET", "test-secret")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mc := &MusicalNightController{}

	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(7).WillReturnRows(userRow(7, "TXS00001"))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT IGNORE INTO musical_night_phases`).WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM musical_night_phases WHERE phase = \? FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"phase"}).AddRow(1))
	mock.ExpectQuery(`WHERE texus_id = \? AND phase = \?`).WithArgs("TXS00001", 1).
		WillReturnRows(countRow(1))
	mock.ExpectRollback()

	req := httptest.NewRequest("POST", "/musical-night/register", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearerFor(t, 7))
	rr := httptest.NewRecorder()
	mc.Register(db)(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("phase lock not taken before duplicate check: %v", err)
	}
}

func TestMusicalNightRegisterLastSlotSerializes(t *testing.T) {
	t.Setenv("SECRET", "test-secret")
	t.Setenv("MUSICAL_NIGHT_SLOTS", "2")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mc := &MusicalNightController{}

	// winner takes the last slot
	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(7).WillReturnRows(userRow(7, "TXS00001"))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT IGNORE INTO musical_night_phases`).WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM musical_night_phases WHERE phase = \? FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"phase"}).AddRow(1))
	mock.ExpectQuery(`WHERE texus_id = \? AND phase = \?`).WithArgs("TXS00001", 1).
		WillReturnRows(countRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM musical_night WHERE phase = \?`).WithArgs(1).
		WillReturnRows(countRow(1))
	mock.ExpectExec(`INSERT INTO musical_night`).WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest("POST", "/musical-night/register", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearerFor(t, 7))
	rr := httptest.NewRecorder()
	mc.Register(db)(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("winner: status %d, body %s", rr.Code, rr.Body.String())
	}

	// loser queues on the phase lock and sees the committed count
	mock.ExpectQuery(`FROM users WHERE id = \?`).WithArgs(8).WillReturnRows(userRow(8, "TXS00002"))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT IGNORE INTO musical_night_phases`).WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM musical_night_phases WHERE phase = \? FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"phase"}).AddRow(1))
	mock.ExpectQuery(`WHERE texus_id = \? AND phase = \?`).WithArgs("TXS00002", 1).
		WillReturnRows(countRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM musical_night WHERE phase = \?`).WithArgs(1).
		WillReturnRows(countRow(2))
	mock.ExpectRollback()

	req = httptest.NewRequest("POST", "/musical-night/register", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearerFor(t, 8))
	rr = httptest.NewRecorder()
	mc.Register(db)(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("loser: status %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Event Full") {
		t.Errorf("loser body = %s, want Event Full", rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("lock ordering not honored: %v", err)
	}
}
