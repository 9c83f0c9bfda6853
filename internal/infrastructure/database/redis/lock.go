package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coilforge/coilforge/internal/infrastructure/monitoring/logging"
	"github.com/coilforge/coilforge/pkg/errors"
)

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// StudyLock serializes dataset and optimization runs on the same study.
// Each lock instance owns a random token so an expired lock taken over by
// another runner is never released by the first one.
type StudyLock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
	log    logging.Logger
}

// NewStudyLock builds a lock for the named study.
func NewStudyLock(client *Client, study string, ttl time.Duration, log logging.Logger) *StudyLock {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StudyLock{
		client: client,
		key:    "coilforge:lock:" + study,
		token:  uuid.NewString(),
		ttl:    ttl,
		log:    log.Named("study_lock"),
	}
}

// Acquire attempts to take the lock.  It returns false when another runner
// holds it.
func (l *StudyLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.RDB().SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to acquire study lock")
	}
	if ok {
		l.log.Debug("study lock acquired", logging.String("key", l.key))
	}
	return ok, nil
}

// Extend pushes the expiry out by the configured TTL while the run is still
// active.  It returns false when the lock is no longer held.
func (l *StudyLock) Extend(ctx context.Context) (bool, error) {
	current, err := l.client.RDB().Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to inspect study lock")
	}
	if current != l.token {
		return false, nil
	}
	ok, err := l.client.RDB().Expire(ctx, l.key, l.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to extend study lock")
	}
	return ok, nil
}

// Release frees the lock if this instance still owns it.
func (l *StudyLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client.RDB(), []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release study lock")
	}
	return nil
}
