package postgres

import (
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestVectorRoundTrip(t *testing.T) {
	embedding := make([]float64, 192)
	for i := range embedding {
		embedding[i] = float64(i) * 0.001
	}

	v := toVector(embedding)
	back := fromVector(v)

	if len(back) != len(embedding) {
		t.Fatalf("expected %d dims back, got %d", len(embedding), len(back))
	}
	for i := range embedding {
		// float32 round-trip loses precision; tolerate small delta.
		if diff := back[i] - embedding[i]; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("dim %d: got %v, want ~%v", i, back[i], embedding[i])
		}
	}
}

func TestDeleteUser_NoRowsAffected(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &Repository{BaseRepository: BaseRepository{pool: nil}}

	mock.ExpectExec("DELETE FROM voiceauth_users").
		WithArgs("+15551234567").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := setupMockContext(mock)
	deleted, err := repo.DeleteUser(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatalf("expected deleted=false when no row matched")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDeleteUser_RowAffected(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &Repository{BaseRepository: BaseRepository{pool: nil}}

	mock.ExpectExec("DELETE FROM voiceauth_users").
		WithArgs("+15551234567").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ctx := setupMockContext(mock)
	deleted, err := repo.DeleteUser(ctx, "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected deleted=true when a row matched")
	}
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &Repository{BaseRepository: BaseRepository{pool: nil}}

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	ctx := setupMockContext(mock)
	if !repo.HealthCheck(ctx) {
		t.Fatalf("expected HealthCheck to succeed")
	}
}
