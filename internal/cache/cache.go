package cache

import (
	"context"
	"time"
)

// ReceiptCache records delivery receipts so dashboards and support
// tooling can resolve "did job X go out?" without hitting Postgres.
// Best effort: a cache failure never fails the delivery.
type ReceiptCache interface {
	StoreDelivered(ctx context.Context, jobID, transportMsgID string, deliveredAt time.Time) error
}

// Noop discards receipts. Used when Redis is not configured.
type Noop struct{}

func (Noop) StoreDelivered(context.Context, string, string, time.Time) error { return nil }

// compile-time check that Noop implements ReceiptCache
var _ ReceiptCache = Noop{}
