package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewClient(Config{Host: mr.Host(), Port: mr.Port(), PoolSize: 2}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, c.Healthy(context.Background()))

	mr.Close()
	assert.Error(t, c.Healthy(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err := NewClient(Config{Host: host, Port: port}, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
