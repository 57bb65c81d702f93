package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
)

// LogAttempt records one verification attempt. The caller supplies
// ExternalID (generated via internal/shared/id) so the audit row has a
// stable external identifier independent of its primary key.
func (r *Repository) LogAttempt(ctx context.Context, attempt *models.AuthAttempt) (*models.AuthAttempt, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO voiceauth_attempts (external_id, phone, success, score, call_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, external_id, phone, success, score, call_id, created_at`

	var out models.AuthAttempt
	var callID sql.NullString

	err := r.conn(ctx).QueryRow(ctx, query,
		attempt.ExternalID, attempt.Phone, attempt.Success, attempt.Score, nullString(attempt.CallID), attempt.CreatedAt,
	).Scan(&out.ID, &out.ExternalID, &out.Phone, &out.Success, &out.Score, &callID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	out.CallID = getString(callID)
	return &out, nil
}

// AttemptsByPhone returns the most recent attempts for phone, newest first,
// bounded by limit.
func (r *Repository) AttemptsByPhone(ctx context.Context, phone string, limit int) ([]*models.AuthAttempt, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, external_id, phone, success, score, call_id, created_at
		FROM voiceauth_attempts
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*models.AuthAttempt, 0)
	for rows.Next() {
		var a models.AuthAttempt
		var callID sql.NullString
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Phone, &a.Success, &a.Score, &callID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CallID = getString(callID)
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// RecentFailureCount counts failed attempts for phone within the trailing
// window. The orchestrator does not call it.
func (r *Repository) RecentFailureCount(ctx context.Context, phone string, window time.Duration) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*) FROM voiceauth_attempts
		WHERE phone = $1 AND success = false AND created_at >= $2`

	var count int
	err := r.conn(ctx).QueryRow(ctx, query, phone, time.Now().Add(-window)).Scan(&count)
	return count, err
}
