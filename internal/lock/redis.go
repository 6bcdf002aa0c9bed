// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/vidgrab/internal/log"
)

const keyPrefix = "vidgrab:lock:"

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the expiry only while the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Table shared by every instance pointing at the same server.
// Leases expire after ttl unless kept alive, so a crashed holder cannot
// block a URL forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis returns a lock table on client. A non-positive ttl defaults to one minute.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: xglog.WithComponent("lock"),
	}
}

// Key returns the redis key used for url.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// TryAcquire sets the key with NX. While held, the lease is extended every
// ttl/3 until release is called.
func (r *Redis) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	rkey := Key(key)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, rkey, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock acquire: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(rkey, token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{rkey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn().Err(err).Str(xglog.FieldEvent, "lock.release_failed").Msg("redis lock release failed; lease will expire")
			}
		})
	}
	return release, true, nil
}

func (r *Redis) keepAlive(rkey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			n, err := extendScript.Run(ctx, r.client, []string{rkey}, token, r.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				r.logger.Warn().Err(err).Str(xglog.FieldEvent, "lock.extend_failed").Msg("redis lock extend failed")
				continue
			}
			if n == 0 {
				r.logger.Warn().Str(xglog.FieldEvent, "lock.lost").Msg("redis lock lease lost")
				return
			}
		}
	}
}

// Ping checks that the backing server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
