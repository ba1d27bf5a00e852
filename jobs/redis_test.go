package jobs

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestRedisConnOptHostPort(t *testing.T) {
	opt, err := RedisConnOpt("localhost:6379")
	require.NoError(t, err)
	require.Equal(t, asynq.RedisClientOpt{Addr: "localhost:6379"}, opt)
}

func TestRedisConnOptURL(t *testing.T) {
	opt, err := RedisConnOpt("redis://:s3cret@cache.internal:6380/2")
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	require.Equal(t, "cache.internal:6380", client.Addr)
	require.Equal(t, "s3cret", client.Password)
	require.Equal(t, 2, client.DB)

	_, err = RedisConnOpt("redis://cache.internal:6380/queue")
	require.Error(t, err)
}
