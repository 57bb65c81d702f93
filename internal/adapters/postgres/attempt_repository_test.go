package postgres

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
)

func TestLogAttempt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &Repository{BaseRepository: BaseRepository{pool: nil}}

	attempt := models.NewAttempt("+15551234567", true, 0.91, "call_123")
	attempt.ExternalID = "att_abc123"

	mock.ExpectQuery("INSERT INTO voiceauth_attempts").
		WithArgs(attempt.ExternalID, attempt.Phone, attempt.Success, attempt.Score, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "external_id", "phone", "success", "score", "call_id", "created_at"}).
			AddRow(int64(1), attempt.ExternalID, attempt.Phone, attempt.Success, attempt.Score, attempt.CallID, attempt.CreatedAt))

	ctx := setupMockContext(mock)
	out, err := repo.LogAttempt(ctx, attempt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != 1 || out.ExternalID != attempt.ExternalID {
		t.Fatalf("unexpected attempt returned: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAttemptsByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &Repository{BaseRepository: BaseRepository{pool: nil}}
	now := time.Now()

	mock.ExpectQuery("SELECT id, external_id, phone, success, score, call_id, created_at").
		WithArgs("+15551234567", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "external_id", "phone", "success", "score", "call_id", "created_at"}).
			AddRow(int64(2), "att_2", "+15551234567", false, 0.40, "call_2", now).
			AddRow(int64(1), "att_1", "+15551234567", true, 0.95, "call_1", now.Add(-time.Hour)))

	ctx := setupMockContext(mock)
	attempts, err := repo.AttemptsByPhone(ctx, "+15551234567", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].ID != 2 {
		t.Fatalf("expected newest-first ordering, got id=%d first", attempts[0].ID)
	}
}

func TestRecentFailureCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &Repository{BaseRepository: BaseRepository{pool: nil}}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("+15551234567", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	ctx := setupMockContext(mock)
	count, err := repo.RecentFailureCount(ctx, "+15551234567", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}
