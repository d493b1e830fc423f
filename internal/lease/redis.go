package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"persona/internal/infra"
)

const (
	defaultKey        = "persona:engine:lease"
	defaultTTL        = 5 * time.Minute
	defaultRetryDelay = 250 * time.Millisecond
)

// releaseScript deletes the key only when it still holds our token, so an
// expired holder can never drop a lease taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures the distributed lease.
type RedisOptions struct {
	Key        string
	TTL        time.Duration
	RetryDelay time.Duration
	Logger     *infra.Logger
}

// Redis is a lease shared by every replica pointing at the same Redis.
type Redis struct {
	client     redis.UniversalClient
	key        string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *infra.Logger
}

func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	r := &Redis{
		client:     client,
		key:        opts.Key,
		ttl:        opts.TTL,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}
	if r.key == "" {
		r.key = defaultKey
	}
	if r.ttl <= 0 {
		r.ttl = defaultTTL
	}
	if r.retryDelay <= 0 {
		r.retryDelay = defaultRetryDelay
	}
	if r.logger == nil {
		r.logger = infra.NopLogger()
	}
	return r
}

// Acquire retries SET NX PX until it wins or ctx ends.
func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	waited := false
	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("lease: acquire: %w", err)
		}
		if ok {
			if waited {
				r.logger.Debug().Str("key", r.key).Msg("lease: acquired after wait")
			}
			return r.releaser(token), nil
		}
		waited = true
		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Redis) releaser(token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Warn().Err(err).Str("key", r.key).Msg("lease: release failed; waiting for ttl")
		}
	}
}
