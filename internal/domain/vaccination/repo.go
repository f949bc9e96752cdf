package vaccination

import "context"

type EventRepository interface {
	Create(ctx context.Context, ev *VerificationEvent) error
	List(ctx context.Context, limit, offset int) ([]*VerificationEvent, int, error)
}
