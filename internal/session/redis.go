package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "tv:session:"
	lockKeyPrefix    = "tv:session-lock:"
	expiryIndexKey   = "tv:session-expiry"

	lockTTL       = 15 * time.Second
	lockRetryWait = 50 * time.Millisecond
)

// releaseLockScript deletes the lock only if this holder still owns it.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps sessions in redis so multiple bot/worker instances share
// them. Keys carry no redis TTL: expiry is tracked in a sorted set and
// reclaimed by the janitor, which must release the artifact before the
// session record disappears.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, userID)
}

func (s *RedisStore) get(ctx context.Context, userID int64) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *RedisStore) Open(ctx context.Context, sess Session, replace bool) (*Session, error) {
	prev, err := s.get(ctx, sess.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if prev != nil && !prev.expired(s.now()) && !replace {
		return nil, ErrExists
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.UserID), raw, 0)
	pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
		Score:  float64(sess.ExpiresAt.Unix()),
		Member: sess.UserID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return prev, nil
}

func (s *RedisStore) Resolve(ctx context.Context, userID int64) (*Session, error) {
	sess, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.expired(s.now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *RedisStore) Close(ctx context.Context, userID int64) (*Session, error) {
	sess, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(userID))
	pipe.ZRem(ctx, expiryIndexKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// ReapExpired removes sessions whose index score fell behind now. Each
// candidate is re-checked under the per-user lock: a concurrent Open may
// have replaced the expired session since the index scan, and that fresh
// session must not be reaped.
func (s *RedisStore) ReapExpired(ctx context.Context, now time.Time) ([]Session, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, err
	}

	var expired []Session
	for _, id := range ids {
		var userID int64
		if _, err := fmt.Sscanf(id, "%d", &userID); err != nil {
			continue
		}

		unlock, err := s.Lock(ctx, userID)
		if err != nil {
			return expired, err
		}

		sess, err := s.get(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			_ = s.rdb.ZRem(ctx, expiryIndexKey, id).Err()
			unlock()
			continue
		}
		if err != nil {
			unlock()
			return expired, err
		}
		if !sess.expired(now) {
			// replaced since the scan; heal the stale index score
			_ = s.rdb.ZAdd(ctx, expiryIndexKey, redis.Z{
				Score:  float64(sess.ExpiresAt.Unix()),
				Member: userID,
			}).Err()
			unlock()
			continue
		}

		closed, err := s.Close(ctx, userID)
		unlock()
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, *closed)
	}
	return expired, nil
}

// Lock takes a cross-instance lease on the user's session. It spins with a
// short backoff; the lease TTL bounds the damage of a crashed holder.
func (s *RedisStore) Lock(ctx context.Context, userID int64) (func(), error) {
	key := lockKeyPrefix + fmt.Sprintf("%d", userID)
	token := uuid.NewString()

	for {
		ok, err := s.rdb.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseLockScript.Run(releaseCtx, s.rdb, []string{key}, token).Err()
	}, nil
}
