package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Hjhirp/voice-auth-microservice/internal/domain/models"
	"github.com/Hjhirp/voice-auth-microservice/internal/ports"
)

// Repository implements ports.UserRepository against Postgres, storing the
// voiceprint embedding in a pgvector column and the per-attempt audit log
// in a separate append-only table.
type Repository struct {
	BaseRepository
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{BaseRepository: NewBaseRepository(pool)}
}

var _ ports.UserRepository = (*Repository)(nil)

func toVector(embedding []float64) pgvector.Vector {
	f32 := make([]float32, len(embedding))
	for i, v := range embedding {
		f32[i] = float32(v)
	}
	return pgvector.NewVector(f32)
}

func fromVector(v pgvector.Vector) []float64 {
	f32 := v.Slice()
	f64 := make([]float64, len(f32))
	for i, v := range f32 {
		f64[i] = float64(v)
	}
	return f64
}

// UpsertUser inserts a new voiceprint or replaces the existing one for the
// given phone number (P5: enrollment is idempotent by phone number).
func (r *Repository) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO voiceauth_users (phone, embedding, enrolled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET embedding = EXCLUDED.embedding, enrolled_at = EXCLUDED.enrolled_at
		RETURNING phone, embedding, enrolled_at`

	var phone string
	var embedding pgvector.Vector
	var enrolledAt = user.EnrolledAt

	err := r.conn(ctx).QueryRow(ctx, query, user.Phone, toVector(user.Embedding), user.EnrolledAt).
		Scan(&phone, &embedding, &enrolledAt)
	if err != nil {
		return nil, err
	}

	return &models.User{
		Phone:      phone,
		Embedding:  fromVector(embedding),
		EnrolledAt: enrolledAt,
	}, nil
}

// GetUserByPhone returns ports.ErrUserNotFound when no row matches.
func (r *Repository) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT phone, embedding, enrolled_at FROM voiceauth_users WHERE phone = $1`

	var gotPhone string
	var embedding pgvector.Vector
	var enrolledAt time.Time

	err := r.conn(ctx).QueryRow(ctx, query, phone).Scan(&gotPhone, &embedding, &enrolledAt)
	if err != nil {
		if checkNoRows(err) {
			return nil, ports.ErrUserNotFound
		}
		return nil, err
	}

	return &models.User{
		Phone:      gotPhone,
		Embedding:  fromVector(embedding),
		EnrolledAt: enrolledAt,
	}, nil
}

// DeleteUser removes a user's voiceprint. It returns (false, nil) rather
// than an error when no row existed, judged by the DELETE command tag's
// affected-row count.
func (r *Repository) DeleteUser(ctx context.Context, phone string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM voiceauth_users WHERE phone = $1`, phone)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HealthCheck verifies the pool can still reach Postgres.
func (r *Repository) HealthCheck(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var ok int
	err := r.conn(ctx).QueryRow(ctx, `SELECT 1`).Scan(&ok)
	return err == nil
}
