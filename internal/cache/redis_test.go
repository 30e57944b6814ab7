package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRedisFailureLeavesClientNil(t *testing.T) {
	prev := Rdb
	Rdb = nil
	t.Cleanup(func() { Rdb = prev })

	// Port 1 refuses immediately; the connect must fail.
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")

	err := ConnectRedis()
	require.Error(t, err)
	assert.Nil(t, Rdb, "a failed connect must not leave a dead client behind the Rdb != nil guards")
}

func TestSubscriberDeliverRunsOnlyMatchingHandlers(t *testing.T) {
	sub := NewSubscriber(nil)

	var got []string
	sub.Handle(ChannelTableUpdated, func(payload []byte) {
		got = append(got, string(payload))
	})

	sub.Deliver(ChannelTableUpdated, []byte("a"))
	sub.Deliver(ChannelGameState, []byte("b"))

	assert.Equal(t, []string{"a"}, got)
}
