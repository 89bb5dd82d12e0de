package server

import (
	"teamarena/protocol"
	"teamarena/world"
)

// joinRequest 入站阶段收集、在物理之后统一应用的加入请求
type joinRequest struct {
	playerID uint64
	teamID   uint64
	role     world.Role
	name     string
}

// handleFrame 解析并路由一帧客户端消息。返回 false 表示该客户端已被标记移除，
// 剩余帧不再处理。
func (s *Server) handleFrame(c *Client, frame []byte) bool {
	msg, err := protocol.UnmarshalClient(frame)
	if err != nil {
		s.metrics.IncMalformed()
		Log.Warnf("client %d sent malformed frame (%d bytes): %v", c.ID, len(frame), err)
		c.markRemoved("malformed frame")
		return false
	}
	s.metrics.IncFramesIn()

	switch m := msg.(type) {
	case protocol.Input:
		c.input = m.Axes()
	case protocol.JoinTeam:
		j := joinRequest{
			playerID: c.ID,
			teamID:   m.TeamID,
			role:     m.Role,
			name:     s.names.Sanitize(m.Name),
		}
		if !c.allowControl() {
			s.metrics.IncRateLimited()
			Log.Debugf("client %d: join request throttled, held", c.ID)
			c.heldJoin = &j
			return true
		}
		c.heldJoin = nil
		s.joins = append(s.joins, j)
	case protocol.SetName:
		name := s.names.Sanitize(m.Name)
		if !c.allowControl() {
			s.metrics.IncRateLimited()
			Log.Debugf("client %d: rename throttled, held", c.ID)
			c.heldName = &name
			return true
		}
		c.heldName = nil
		s.world.RenamePlayer(c.ID, name)
	}
	return true
}

// releaseHeld 限流放行后应用之前被压住的最新控制消息
func (s *Server) releaseHeld(c *Client) {
	if c.heldJoin != nil && c.allowControl() {
		s.joins = append(s.joins, *c.heldJoin)
		c.heldJoin = nil
	}
	if c.heldName != nil && c.allowControl() {
		s.world.RenamePlayer(c.ID, *c.heldName)
		c.heldName = nil
	}
}

// applyJoins 按到达顺序应用本 Tick 收集到的加入请求
func (s *Server) applyJoins() {
	for _, j := range s.joins {
		installed, err := s.world.JoinTeam(j.playerID, j.teamID, j.role, j.name)
		switch {
		case err != nil:
			s.metrics.IncJoinsIgnored()
			Log.Infof("player %d join team %d: %v", j.playerID, j.teamID, err)
		case !installed:
			s.metrics.IncJoinsIgnored()
			Log.Infof("player %d join team %d as %s ignored: slot taken", j.playerID, j.teamID, j.role)
		default:
			s.metrics.IncJoinsApplied()
			Log.Infof("player %d (%s) joined team %d as %s", j.playerID, j.name, j.teamID, j.role)
		}
	}
	clear(s.joins)
	s.joins = s.joins[:0]
}
