package presence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamarena/world"
)

func TestMailbox_NewestWins(t *testing.T) {
	m := newMailbox()
	m.put(Update{Version: 1})
	m.put(Update{Version: 2})
	m.put(Update{Version: 3})

	got := <-m.ch
	assert.Equal(t, uint64(3), got.Version)
	select {
	case extra := <-m.ch:
		t.Fatalf("unexpected stale update %d", extra.Version)
	default:
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(1, nil)
	assert.NoError(t, p.Close())
}

func TestNewRedisPublisher_BadURL(t *testing.T) {
	_, err := NewRedisPublisher("not-a-url", "x", nil)
	require.Error(t, err)
}

// 需要本地 Redis；不可用时跳过
func TestRedisPublisher_WritesRoster(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping presence integration test")
	}

	p := newRedisPublisher(client, "teamarena-test", nil)
	defer p.Close()
	sub := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	defer sub.Close()
	pubsub := sub.Subscribe(ctx, p.EventsChannel())
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	w := world.New(world.DefaultTeams()...)
	_, _ = w.JoinTeam(1, 0, world.Dispatcher, "Ada")
	_, _ = w.JoinTeam(2, 1, world.Agent, "Bob")
	p.Publish(w.Version(), w.Snapshot().Roster())

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var u Update
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &u))
	assert.Equal(t, w.Version(), u.Version)
	require.Len(t, u.Roster, 2)
	assert.Equal(t, "Ada", u.Roster[0].Dispatcher)

	raw, err := client.HGet(ctx, p.RosterKey(), "1").Result()
	require.NoError(t, err)
	var blue world.RosterEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &blue))
	assert.Equal(t, []string{"Bob"}, blue.Agents)

	client.Del(context.Background(), p.RosterKey())
}

// 需要本地 Redis；不可用时跳过
func TestRedisPublisher_CloseFlushesLastRoster(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping presence integration test")
	}
	check := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	defer check.Close()

	p := newRedisPublisher(client, "teamarena-close-test", nil)
	w := world.New(world.DefaultTeams()...)
	_, _ = w.JoinTeam(9, 0, world.Dispatcher, "Zed")
	p.Publish(w.Version(), w.Snapshot().Roster())
	require.NoError(t, p.Close())

	raw, err := check.HGet(ctx, p.RosterKey(), "0").Result()
	require.NoError(t, err)
	var red world.RosterEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &red))
	assert.Equal(t, "Zed", red.Dispatcher)

	check.Del(context.Background(), p.RosterKey())
}
