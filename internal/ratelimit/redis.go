package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"leadgen-engine/internal/domain"
)

const defaultRedisPrefix = "leadgen:sendlog"

// RedisLog keeps one sorted set per sender, scored by send time in
// milliseconds. It lets several engine processes share usage counts.
type RedisLog struct {
	client *redis.Client
	prefix string
}

func NewRedisLog(client *redis.Client, prefix string) *RedisLog {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLog{client: client, prefix: prefix}
}

func (r *RedisLog) key(senderID string, ch domain.Channel) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, ch, senderID)
}

func (r *RedisLog) CountSends(ctx context.Context, senderID string, ch domain.Channel, since time.Time) (int, error) {
	n, err := r.client.ZCount(ctx, r.key(senderID, ch), strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("zcount: %w", err)
	}
	return int(n), nil
}

func (r *RedisLog) LogSend(ctx context.Context, e domain.SendLogEntry) error {
	key := r.key(e.SenderID, e.Channel)
	score := e.At.UnixMilli()
	member := strconv.FormatInt(e.At.UnixNano(), 10) + ":" + e.Recipient

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member})
		// entries older than two windows can never count again
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(e.At.Add(-2*Window).UnixMilli(), 10))
		p.Expire(ctx, key, 2*Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("log send: %w", err)
	}
	return nil
}
