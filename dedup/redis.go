package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// advance is the compare-and-swap of the high water mark. Running it as a Lua script
// makes the read-compare-write a single atomic step on the redis server - two
// concurrent invocations with the same update id cannot both observe "new".
var advance = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '-1')
local new = tonumber(ARGV[1])
if new > cur then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0`)

// RedisMarker persists the per bot update marker in redis.
// One client is constructed at process start and shared across invocations.
type RedisMarker struct {
	Client *redis.Client
	Prefix string // key prefix, defaults to "qrbot:marker" when empty
}

func NewRedisMarker(client *redis.Client) *RedisMarker {
	return &RedisMarker{Client: client, Prefix: "qrbot:marker"}
}

func (rm *RedisMarker) key(bot string) string {
	prefix := rm.Prefix
	if prefix == "" {
		prefix = "qrbot:marker"
	}
	return fmt.Sprintf("%s:%s", prefix, bot)
}

// ShouldProcess implements Marker over the atomic script.
// A key that does not exist yet behaves as marker -1, so the first update always processes.
func (rm *RedisMarker) ShouldProcess(ctx context.Context, bot string, updateID int64) (bool, error) {
	res, err := advance.Run(ctx, rm.Client, []string{rm.key(bot)}, updateID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to advance update marker for bot %s: %w", bot, err)
	}
	return res == 1, nil
}
