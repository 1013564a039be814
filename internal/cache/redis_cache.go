package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisReceipts struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisReceipts(rdb *redis.Client, ttl time.Duration) *RedisReceipts {
	return &RedisReceipts{rdb: rdb, ttl: ttl}
}

type deliveredValue struct {
	TransportMsgID string    `json:"transportMsgId"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

func (c *RedisReceipts) StoreDelivered(ctx context.Context, jobID, transportMsgID string, deliveredAt time.Time) error {
	key := fmt.Sprintf("receipt:%s", jobID)
	val := deliveredValue{
		TransportMsgID: transportMsgID,
		DeliveredAt:    deliveredAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

// compile-time check that RedisReceipts implements ReceiptCache
var _ ReceiptCache = (*RedisReceipts)(nil)
