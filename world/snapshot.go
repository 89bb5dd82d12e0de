package world

// TeamSnapshot 队伍的只读副本，用于序列化
type TeamSnapshot struct {
	ID         uint64   `msgpack:"id" json:"id"`
	Name       string   `msgpack:"name" json:"name"`
	Color      Color    `msgpack:"color" json:"color"`
	Dispatcher *Player  `msgpack:"dispatcher" json:"dispatcher"`
	Agents     []Player `msgpack:"agents" json:"agents"`
}

// Snapshot 整个世界的只读副本，队伍按 ID 升序
type Snapshot struct {
	Teams       []TeamSnapshot `msgpack:"teams" json:"teams"`
	GameStarted bool           `msgpack:"game_started" json:"game_started"`
}

// Snapshot 深拷贝当前世界，之后对世界的修改不会影响返回值
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{Teams: make([]TeamSnapshot, 0, len(w.order)), GameStarted: w.started}
	for _, id := range w.order {
		t := w.teams[id]
		ts := TeamSnapshot{
			ID:     t.ID,
			Name:   t.Name,
			Color:  t.Color,
			Agents: make([]Player, 0, len(t.Agents)),
		}
		if t.Dispatcher != nil {
			d := *t.Dispatcher
			ts.Dispatcher = &d
		}
		for _, a := range t.Agents {
			ts.Agents = append(ts.Agents, *a)
		}
		snap.Teams = append(snap.Teams, ts)
	}
	return snap
}

// Player 在快照中查找玩家
func (s Snapshot) Player(id uint64) (Player, bool) {
	for _, t := range s.Teams {
		if t.Dispatcher != nil && t.Dispatcher.ID == id {
			return *t.Dispatcher, true
		}
		for _, a := range t.Agents {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Player{}, false
}

// RosterEntry 名单中的一支队伍（只含名字，不含位置）
type RosterEntry struct {
	TeamID     uint64   `json:"team_id"`
	Team       string   `json:"team"`
	Dispatcher string   `json:"dispatcher,omitempty"`
	Agents     []string `json:"agents"`
}

// Roster 由快照生成队伍名单
func (s Snapshot) Roster() []RosterEntry {
	out := make([]RosterEntry, 0, len(s.Teams))
	for _, t := range s.Teams {
		e := RosterEntry{TeamID: t.ID, Team: t.Name, Agents: make([]string, 0, len(t.Agents))}
		if t.Dispatcher != nil {
			e.Dispatcher = t.Dispatcher.Name
		}
		for _, a := range t.Agents {
			e.Agents = append(e.Agents, a.Name)
		}
		out = append(out, e)
	}
	return out
}
