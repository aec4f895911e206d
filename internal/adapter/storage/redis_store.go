package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	holdKeyPrefix     = "hold:"
	holdDeadlinesKey  = "holds:deadlines"
	idempotencyKeyTTL = 24 * time.Hour
)

// reserveScript is the serialization point for tryReserve: the stock check,
// the decrement and the hold record are one script execution, so concurrent
// callers observe some total order per counter and a losing request never
// partially decrements.
var reserveScript = redis.NewScript(`
local stock = KEYS[1]
local hold = KEYS[2]
local deadlines = KEYS[3]
local qty = tonumber(ARGV[1])
local deadline = tonumber(ARGV[2])
local holdID = ARGV[3]
local ref = ARGV[4]

local current = redis.call('GET', stock)
if not current then
	return 0
end

current = tonumber(current)
if current < qty then
	return 0
end

redis.call('DECRBY', stock, qty)
redis.call('HSET', hold, 'ref', ref, 'qty', qty)
redis.call('ZADD', deadlines, deadline, holdID)
return 1
`)

// releaseScript restores a hold's quantity and discards the hold. A missing
// hold returns 0 with no stock effect, which makes release idempotent and
// lets it contend safely with a concurrent commit or sweep.
var releaseScript = redis.NewScript(`
local hold = KEYS[1]
local deadlines = KEYS[2]
local holdID = ARGV[1]
local stockPrefix = ARGV[2]

local ref = redis.call('HGET', hold, 'ref')
if not ref then
	return 0
end

local qty = tonumber(redis.call('HGET', hold, 'qty'))
redis.call('INCRBY', stockPrefix .. ref, qty)
redis.call('DEL', hold)
redis.call('ZREM', deadlines, holdID)
return 1
`)

// commitScript makes a hold's decrement permanent by discarding the hold
// without touching stock.
var commitScript = redis.NewScript(`
local hold = KEYS[1]
local deadlines = KEYS[2]
local holdID = ARGV[1]

if redis.call('EXISTS', hold) == 0 then
	return 0
end

redis.call('DEL', hold)
redis.call('ZREM', deadlines, holdID)
return 1
`)

// adjustScript applies an administrative delta, refusing any result below
// zero.
var adjustScript = redis.NewScript(`
local stock = KEYS[1]
local delta = tonumber(ARGV[1])

local current = tonumber(redis.call('GET', stock) or '0')
if current + delta < 0 then
	return -1
end

return redis.call('INCRBY', stock, delta)
`)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) SetStock(ctx context.Context, ref string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+ref, quantity, 0).Err()
}

func (r *RedisStore) GetStock(ctx context.Context, ref string) (int, error) {
	stock, err := r.client.Get(ctx, stockKeyPrefix+ref).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return stock, err
}

func (r *RedisStore) Reserve(ctx context.Context, holdID, ref string, quantity int, expiresAt time.Time) (bool, error) {
	result, err := reserveScript.Run(ctx, r.client,
		[]string{stockKeyPrefix + ref, holdKeyPrefix + holdID, holdDeadlinesKey},
		quantity, expiresAt.Unix(), holdID, ref,
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisStore) Commit(ctx context.Context, holdID string) (bool, error) {
	result, err := commitScript.Run(ctx, r.client,
		[]string{holdKeyPrefix + holdID, holdDeadlinesKey},
		holdID,
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisStore) Release(ctx context.Context, holdID string) (bool, error) {
	result, err := releaseScript.Run(ctx, r.client,
		[]string{holdKeyPrefix + holdID, holdDeadlinesKey},
		holdID, stockKeyPrefix,
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisStore) Adjust(ctx context.Context, ref string, delta int) (int, error) {
	return adjustScript.Run(ctx, r.client, []string{stockKeyPrefix + ref}, delta).Int()
}

func (r *RedisStore) ExpiredHolds(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	return r.client.ZRangeByScore(ctx, holdDeadlinesKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
}

func (r *RedisStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisStore) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
