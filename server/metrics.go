package server

import (
	"sync/atomic"
)

// Metrics 记录服务运行期的关键指标（Tick 线程写，HTTP 读）
type Metrics struct {
	TickCount       int64 // 统计的 Tick 次数
	TotalTickNs     int64 // Tick 累计耗时（纳秒）
	ClientsAccepted int64 // 成功下发 AssignID 的连接数
	ClientsRejected int64 // AssignID 发送失败而被丢弃的连接数
	ClientsRemoved  int64 // 被清理的客户端数
	FramesIn        int64 // 解析成功的入站帧
	MalformedFrames int64 // 无法解析的入站帧
	JoinsApplied    int64 // 生效的加入请求
	JoinsIgnored    int64 // Dispatcher 槽位已占用或队伍不存在
	RateLimited     int64 // 因控制消息限流被丢弃
	SendStalls      int64 // 写超时而被移除的客户端
	ActiveClients   int64 // 当前在线客户端
}

func (m *Metrics) IncAccepted()     { atomic.AddInt64(&m.ClientsAccepted, 1) }
func (m *Metrics) IncRejected()     { atomic.AddInt64(&m.ClientsRejected, 1) }
func (m *Metrics) IncRemoved()      { atomic.AddInt64(&m.ClientsRemoved, 1) }
func (m *Metrics) IncFramesIn()     { atomic.AddInt64(&m.FramesIn, 1) }
func (m *Metrics) IncMalformed()    { atomic.AddInt64(&m.MalformedFrames, 1) }
func (m *Metrics) IncJoinsApplied() { atomic.AddInt64(&m.JoinsApplied, 1) }
func (m *Metrics) IncJoinsIgnored() { atomic.AddInt64(&m.JoinsIgnored, 1) }
func (m *Metrics) IncRateLimited()  { atomic.AddInt64(&m.RateLimited, 1) }
func (m *Metrics) IncSendStalls()   { atomic.AddInt64(&m.SendStalls, 1) }
func (m *Metrics) SetActive(n int)  { atomic.StoreInt64(&m.ActiveClients, int64(n)) }
func (m *Metrics) Active() int64    { return atomic.LoadInt64(&m.ActiveClients) }
func (m *Metrics) Ticks() int64     { return atomic.LoadInt64(&m.TickCount) }
func (m *Metrics) Malformed() int64 { return atomic.LoadInt64(&m.MalformedFrames) }
func (m *Metrics) Limited() int64   { return atomic.LoadInt64(&m.RateLimited) }
func (m *Metrics) Removed() int64   { return atomic.LoadInt64(&m.ClientsRemoved) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
		"clients_accepted": atomic.LoadInt64(&m.ClientsAccepted),
		"clients_rejected": atomic.LoadInt64(&m.ClientsRejected),
		"clients_removed":  atomic.LoadInt64(&m.ClientsRemoved),
		"clients_active":   atomic.LoadInt64(&m.ActiveClients),
		"frames_in":        atomic.LoadInt64(&m.FramesIn),
		"malformed_frames": atomic.LoadInt64(&m.MalformedFrames),
		"joins_applied":    atomic.LoadInt64(&m.JoinsApplied),
		"joins_ignored":    atomic.LoadInt64(&m.JoinsIgnored),
		"rate_limited":     atomic.LoadInt64(&m.RateLimited),
		"send_stalls":      atomic.LoadInt64(&m.SendStalls),
	}
}
