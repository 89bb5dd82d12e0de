package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"teamarena/protocol"
	"teamarena/transport"
	"teamarena/world"
)

// Run 固定周期推进 Tick，直到 ctx 结束（返回 nil）或出现致命错误
func (s *Server) Run(ctx context.Context) error {
	var last time.Time
	for {
		// 节拍：距上次 Tick 不足一个周期则等待剩余时间
		if wait := s.cfg.TickPeriod - time.Since(last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		last = time.Now()

		if err := s.Tick(); err != nil {
			Log.Errorf("tick %d: %v", s.tickSeq.Load(), err)
			return err
		}
		s.metrics.AddTick(time.Since(last).Nanoseconds())
	}
}

// Tick 执行一次完整的更新：接入 → 入站 → 物理 → 加入 → 广播 → 清理。
// 只能由拥有 Server 的单一协程调用。
func (s *Server) Tick() error {
	s.acceptPending()
	if err := s.ingest(); err != nil {
		return err
	}
	s.simulate()
	s.applyJoins()
	if err := s.broadcast(); err != nil {
		return err
	}
	s.cleanup()
	s.publishRoster()
	s.tickSeq.Add(1)
	return nil
}

// acceptPending 领取所有已 accept 的连接，分配身份并先发 AssignID
func (s *Server) acceptPending() {
	for {
		select {
		case conn := <-s.pending:
			s.admit(transport.NewChannel(conn, s.cfg.SendTimeout))
		default:
			return
		}
	}
}

func (s *Server) admit(ch *transport.Channel) {
	id := s.nextID
	s.nextID++

	payload, err := protocol.MarshalServer(protocol.AssignID{ID: id})
	if err == nil {
		err = ch.Send(payload)
	}
	if err != nil {
		s.metrics.IncRejected()
		Log.Warnf("client %d from %s dropped before assignment: %v", id, ch.RemoteAddr(), err)
		_ = ch.Close()
		return
	}

	s.clients = append(s.clients, newClient(id, ch, rate.Limit(s.cfg.ControlRate), s.cfg.ControlBurst))
	s.metrics.IncAccepted()
	s.metrics.SetActive(len(s.clients))
	Log.Infof("client %d connected from %s", id, ch.RemoteAddr())
}

// ingest 拉取每个客户端的入站字节并处理所有完整帧
func (s *Server) ingest() error {
	for _, c := range s.clients {
		if _, err := c.ch.Pull(); err != nil {
			if ferr := s.ioFailure(c, err); ferr != nil {
				return ferr
			}
			continue
		}
		s.releaseHeld(c)
		for frame := range c.ch.Frames() {
			if !s.handleFrame(c, frame) {
				break
			}
		}
	}
	return nil
}

// simulate 用缓存的输入推进每个仍在线玩家
func (s *Server) simulate() {
	for _, c := range s.clients {
		if c.active() {
			s.world.AdvancePlayer(c.ID, s.dt, c.input)
		}
	}
}

// broadcast 序列化一次世界快照，发给所有仍在线的客户端，随后发本 Tick 的音效与观战推送
func (s *Server) broadcast() error {
	snap := s.world.Snapshot()
	s.snapshot.Store(&snap)

	frames := make([][]byte, 0, 1)
	state, err := protocol.MarshalServer(protocol.GameState{State: snap})
	switch {
	case err != nil:
		Log.Errorf("encode game state: %v", err)
	case len(state) > protocol.MaxPayload:
		Log.Errorf("game state of %d bytes exceeds frame limit, skipped", len(state))
	default:
		frames = append(frames, state)
	}
	for _, ps := range s.drainSounds() {
		b, err := protocol.MarshalServer(ps)
		if err != nil {
			Log.Errorf("encode sound: %v", err)
			continue
		}
		frames = append(frames, b)
	}

	for _, c := range s.clients {
		for _, f := range frames {
			if !c.active() {
				break
			}
			if err := c.ch.Send(f); err != nil {
				if ferr := s.ioFailure(c, err); ferr != nil {
					return ferr
				}
			}
		}
	}

	s.spectators.sync()
	s.spectators.broadcast(s.tickSeq.Load(), snap)
	return nil
}

func (s *Server) drainSounds() []protocol.PlaySound {
	var out []protocol.PlaySound
	for {
		select {
		case ps := <-s.sounds:
			out = append(out, ps)
		default:
			return out
		}
	}
}

// ioFailure 按错误类别处理：断开/卡死标记移除；其余错误视配置终止服务或只移除该客户端
func (s *Server) ioFailure(c *Client, err error) error {
	switch {
	case errors.Is(err, transport.ErrSendStalled):
		s.metrics.IncSendStalls()
		c.markRemoved("send stalled")
	case transport.IsDisconnect(err):
		c.markRemoved("peer closed")
	case s.cfg.FatalOnUnexpectedIO:
		return fmt.Errorf("client %d: %w", c.ID, err)
	default:
		Log.Errorf("client %d: %v", c.ID, err)
		c.markRemoved("i/o error")
	}
	return nil
}

// cleanup 移除本 Tick 被标记的客户端及其玩家
func (s *Server) cleanup() {
	kept := s.clients[:0]
	for _, c := range s.clients {
		if c.active() {
			kept = append(kept, c)
			continue
		}
		s.world.RemovePlayer(c.ID)
		_ = c.ch.Close()
		s.metrics.IncRemoved()
		Log.Infof("client %d disconnected: %s", c.ID, c.reason)
	}
	clear(s.clients[len(kept):])
	s.clients = kept
	s.metrics.SetActive(len(s.clients))
}

// publishRoster 世界版本变化时把名单交给 presence（非阻塞）
func (s *Server) publishRoster() {
	v := s.world.Version()
	if v == s.published {
		return
	}
	s.published = v
	s.presence.Publish(v, s.world.Snapshot().Roster())
}

// World 返回世界模型；只允许在 Tick 协程内（或服务未运行时）使用
func (s *Server) World() *world.World { return s.world }
