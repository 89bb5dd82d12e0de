package server

import (
	"golang.org/x/time/rate"

	"teamarena/transport"
	"teamarena/world"
)

// Client 一个已接入连接的服务端记录：身份、消息通道与最近一次输入
type Client struct {
	ID uint64

	ch      *transport.Channel
	input   world.Input   // 最近一次 Input，Tick 内后到覆盖先到
	limiter *rate.Limiter // nil 表示不限流

	// 被限流的控制消息只保留最新一条，放行后再生效
	heldJoin *joinRequest
	heldName *string

	removed bool
	reason  string
}

func newClient(id uint64, ch *transport.Channel, r rate.Limit, burst int) *Client {
	c := &Client{ID: id, ch: ch}
	if r > 0 {
		c.limiter = rate.NewLimiter(r, burst)
	}
	return c
}

// allowControl JoinTeam/SetName 是否放行
func (c *Client) allowControl() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// markRemoved 标记在本 Tick 末尾清理；只记录第一次的原因
func (c *Client) markRemoved(reason string) {
	if c.removed {
		return
	}
	c.removed = true
	c.reason = reason
}

// active 本 Tick 是否仍参与后续步骤
func (c *Client) active() bool { return !c.removed }
