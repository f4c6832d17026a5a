// Package analytics keeps best-effort hourly storefront counters in Redis.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	KindCartAdd           Kind = "cart_add"
	KindCartAddCustomized Kind = "cart_add_customized"
	KindDesignReady       Kind = "design_ready"
)

// DefaultRetention is how long a bucket survives after its last increment.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    redis.Cmdable
	retention time.Duration
	now       func() time.Time
}

func NewRedisSink(client redis.Cmdable, retention time.Duration) *RedisSink {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisSink{client: client, retention: retention, now: time.Now}
}

// Record increments the current hour's counter for kind and sku.
func (s *RedisSink) Record(ctx context.Context, kind Kind, sku string) error {
	key := buildKey(kind, sku, s.now())

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Count sums the hourly buckets for kind and sku covering [from, to].
// Missing buckets count as zero.
func (s *RedisSink) Count(ctx context.Context, kind Kind, sku string, from, to time.Time) (int64, error) {
	var keys []string
	for t := from.UTC().Truncate(time.Hour); !t.After(to.UTC()); t = t.Add(time.Hour) {
		keys = append(keys, buildKey(kind, sku, t))
	}
	if len(keys) == 0 {
		return 0, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis mget: %w", err)
	}

	var total int64
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(str, &n); err == nil {
			total += n
		}
	}
	return total, nil
}

func buildKey(kind Kind, sku string, t time.Time) string {
	// Colons would split the key namespace.
	sku = strings.ReplaceAll(sku, ":", "_")
	return fmt.Sprintf("a:%s:%s:%s", kind, sku, t.UTC().Format("2006010215"))
}
