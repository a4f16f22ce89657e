package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	setBefore := testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set"))
	getErrBefore := testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get"))

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	_, err = client.Get(ctx, "missing").Result()
	assert.ErrorIs(t, err, goredis.Nil)

	assert.Equal(t, setBefore+1, testutil.ToFloat64(redisRequestsTotal.WithLabelValues("set")))
	assert.Equal(t, getErrBefore, testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get")), "redis.Nil is not an error")
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr, MaxRetries: -1})
	assert.Error(t, err)
}
