package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when a lock operation finds the key missing or
// owned by another token.
var ErrNotHeld = errors.New("lock not held")

const (
	unlockScript = `if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end`
	extendScript = `if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end`
)

// Locker guards a processor run for one queue shard. Overlapping trigger
// firings back off instead of thrashing claims against each other;
// correctness still rests on the queue's compare-and-set, not on this lock.
type Locker struct {
	client redis.UniversalClient
	key    string
	token  string // only the holder may unlock or extend
}

// NewLocker builds a lock with an explicit key and token.
func NewLocker(client redis.UniversalClient, key, token string) *Locker {
	return &Locker{client: client, key: key, token: token}
}

// NewQueueLock builds a lock scoped to a queue shard with a random token.
func NewQueueLock(client redis.UniversalClient, queueName string) *Locker {
	return NewLocker(client, "landed:processor:"+queueName, uuid.New().String())
}

// Lock acquires the lock for ttl. A held lock returns an error wrapping
// ErrNotHeld so callers can back off without parsing messages.
func (l *Locker) Lock(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s already locked: %w", l.key, ErrNotHeld)
	}
	return nil
}

// Unlock releases the lock if this instance still holds it.
func (l *Locker) Unlock(ctx context.Context) error {
	res, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.token).Result()
	if err != nil {
		return err
	}
	if res == int64(0) {
		return fmt.Errorf("unlock of %s: %w", l.key, ErrNotHeld)
	}
	return nil
}

// ExtendLock pushes the expiry out for a long-running processor pass.
func (l *Locker) ExtendLock(ctx context.Context, extension time.Duration) error {
	res, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.token, extension.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if res == int64(0) {
		return fmt.Errorf("extend of %s: %w", l.key, ErrNotHeld)
	}
	return nil
}
