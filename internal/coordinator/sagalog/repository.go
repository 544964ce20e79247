package sagalog

import "context"

// Repository persists saga journal rows. The table is append-only.
type Repository interface {
	Save(ctx context.Context, entry *SagaLog) error

	// History returns every row of a saga in write order.
	History(ctx context.Context, sagaID string) ([]SagaLog, error)

	// Unfinished returns the latest row of every saga whose latest status
	// is not terminal, oldest first.
	Unfinished(ctx context.Context) ([]SagaLog, error)
}
