package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:claim:"

// RedisLimiter is a fixed-window limiter shared by every replica that talks
// to the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	points int
	period time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, points int, period time.Duration) (*RedisLimiter, error) {
	if points <= 0 || period <= 0 {
		return nil, fmt.Errorf("rate limit needs positive points and window, got %d per %s", points, period)
	}
	return &RedisLimiter{client: client, points: points, period: period, now: time.Now}, nil
}

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opt.ReadTimeout = 5 * time.Second
	opt.WriteTimeout = 5 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := redisKeyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit error: %w", err)
	}

	count := int(incr.Val())
	wait := ttl.Val()
	// a key without expiry is a new window, or one whose creator died
	// between INCR and PEXPIRE
	if wait < 0 {
		if err := l.client.PExpire(ctx, k, l.period).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis expire error: %w", err)
		}
		wait = l.period
	}

	d := Decision{
		Limit:   l.points,
		ResetAt: l.now().Add(wait),
	}
	if count > l.points {
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.points - count
	return d, nil
}
