package postgres

import (
	"context"

	"github.com/pashagolub/pgxmock/v4"
)

// setupMockContext stashes mock as the context's transaction so
// BaseRepository.conn() resolves to it instead of a real pool.
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}
