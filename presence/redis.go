package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"teamarena/world"
)

const writeTimeout = 2 * time.Second

// RedisPublisher 把名单写入 Redis 哈希 <prefix>:roster（字段为队伍 ID），
// 并在 <prefix>:roster:events 频道上广播完整名单。
type RedisPublisher struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
	box    *mailbox
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewRedisPublisher 解析 URL 并启动后台写协程；不做连通性检查，写失败只记日志
func NewRedisPublisher(url, prefix string, log *zap.SugaredLogger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return newRedisPublisher(redis.NewClient(opts), prefix, log), nil
}

func newRedisPublisher(client *redis.Client, prefix string, log *zap.SugaredLogger) *RedisPublisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &RedisPublisher{
		client: client,
		prefix: prefix,
		log:    log,
		box:    newMailbox(),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// RosterKey 名单哈希的键
func (p *RedisPublisher) RosterKey() string { return p.prefix + ":roster" }

// EventsChannel 名单变化的发布频道
func (p *RedisPublisher) EventsChannel() string { return p.prefix + ":roster:events" }

// Publish 投递最新名单（非阻塞，未写出的旧名单被覆盖）
func (p *RedisPublisher) Publish(version uint64, roster []world.RosterEntry) {
	p.box.put(Update{Version: version, Roster: roster})
}

func (p *RedisPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			// 关闭前把最后一份名单写出
			select {
			case u := <-p.box.ch:
				p.flush(u)
			default:
			}
			return
		case u := <-p.box.ch:
			p.flush(u)
		}
	}
}

func (p *RedisPublisher) flush(u Update) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.write(ctx, u); err != nil {
		p.log.Warnf("presence: write roster v%d: %v", u.Version, err)
	}
}

func (p *RedisPublisher) write(ctx context.Context, u Update) error {
	fields := make(map[string]any, len(u.Roster))
	for _, team := range u.Roster {
		b, err := json.Marshal(team)
		if err != nil {
			return err
		}
		fields[strconv.FormatUint(team.TeamID, 10)] = string(b)
	}
	event, err := json.Marshal(u)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, p.RosterKey())
	if len(fields) > 0 {
		pipe.HSet(ctx, p.RosterKey(), fields)
	}
	pipe.Publish(ctx, p.EventsChannel(), event)
	_, err = pipe.Exec(ctx)
	return err
}

// Close 停止后台协程并关闭客户端
func (p *RedisPublisher) Close() error {
	close(p.done)
	p.wg.Wait()
	return p.client.Close()
}
