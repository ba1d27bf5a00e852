package jobs

import (
	"strings"

	"github.com/hibiken/asynq"
)

// RedisConnOpt accepts the same REDIS_ADDR forms as the cache client: a bare
// host:port or a redis:// / rediss:// URL carrying password and database.
func RedisConnOpt(addr string) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		return asynq.ParseRedisURI(addr)
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}
