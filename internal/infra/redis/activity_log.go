package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActivityLog keeps each user's last completed session time in Redis so the
// streak computation sees activity from every instance.
type ActivityLog struct {
	client *redis.Client
}

func NewActivityLog(client *redis.Client) *ActivityLog {
	return &ActivityLog{client: client}
}

func (l *ActivityLog) LastCompletedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := l.client.Get(ctx, l.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (l *ActivityLog) RecordCompletion(ctx context.Context, userID string, at time.Time) error {
	return l.client.Set(ctx, l.key(userID), at.Format(time.RFC3339Nano), 0).Err()
}

func (l *ActivityLog) key(userID string) string {
	return "user:lastcompleted:" + userID
}
