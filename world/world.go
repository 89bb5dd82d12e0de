package world

import (
	"errors"
	"sort"
)

// ErrUnknownTeam 加入了不存在的队伍
var ErrUnknownTeam = errors.New("world: unknown team")

// Color 队伍显示颜色
type Color struct {
	R uint8 `msgpack:"r" json:"r"`
	G uint8 `msgpack:"g" json:"g"`
	B uint8 `msgpack:"b" json:"b"`
}

// Team 一支队伍：至多一名 Dispatcher，Agent 数量不限
type Team struct {
	ID         uint64
	Name       string
	Color      Color
	Dispatcher *Player
	Agents     []*Player
}

func (t *Team) has(id uint64) bool {
	if t.Dispatcher != nil && t.Dispatcher.ID == id {
		return true
	}
	for _, a := range t.Agents {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (t *Team) find(id uint64) *Player {
	if t.Dispatcher != nil && t.Dispatcher.ID == id {
		return t.Dispatcher
	}
	for _, a := range t.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// remove 先查 Dispatcher 槽位再查 Agent 列表，删除第一个匹配
func (t *Team) remove(id uint64) bool {
	if t.Dispatcher != nil && t.Dispatcher.ID == id {
		t.Dispatcher = nil
		return true
	}
	for i, a := range t.Agents {
		if a.ID == id {
			t.Agents = append(t.Agents[:i], t.Agents[i+1:]...)
			return true
		}
	}
	return false
}

// World 权威世界模型：只由 Tick 线程持有与修改，不做内部加锁
type World struct {
	teams map[uint64]*Team
	order []uint64 // 队伍 ID 升序，保证遍历与快照确定

	// version 在成员或名字变化时递增，供外部判断名单是否需要重新发布
	version uint64

	started bool
}

// Started 对局是否已开始；随快照下发给客户端
func (w *World) Started() bool { return w.started }

// SetStarted 切换对局开始标记
func (w *World) SetStarted(v bool) { w.started = v }

// TeamSpec 队伍的静态定义
type TeamSpec struct {
	ID    uint64
	Name  string
	Color Color
}

// DefaultTeams 红蓝两队
func DefaultTeams() []TeamSpec {
	return []TeamSpec{
		{ID: 0, Name: "RED", Color: Color{R: 255}},
		{ID: 1, Name: "BLUE", Color: Color{B: 255}},
	}
}

// New 按给定定义创建世界；重复 ID 以后者为准
func New(specs ...TeamSpec) *World {
	w := &World{teams: make(map[uint64]*Team, len(specs))}
	for _, s := range specs {
		if _, dup := w.teams[s.ID]; !dup {
			w.order = append(w.order, s.ID)
		}
		w.teams[s.ID] = &Team{ID: s.ID, Name: s.Name, Color: s.Color}
	}
	sort.Slice(w.order, func(i, j int) bool { return w.order[i] < w.order[j] })
	return w
}

// Version 名单版本号
func (w *World) Version() uint64 { return w.version }

// Team 按 ID 取队伍
func (w *World) Team(id uint64) (*Team, bool) {
	t, ok := w.teams[id]
	return t, ok
}

// Teams 按 ID 升序返回所有队伍
func (w *World) Teams() []*Team {
	out := make([]*Team, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.teams[id])
	}
	return out
}

// JoinTeam 玩家加入队伍。若已在某队先移除；Dispatcher 槽位已被占用时静默忽略
// （先到先得）。返回是否真正安装了新玩家。
func (w *World) JoinTeam(playerID, teamID uint64, role Role, name string) (bool, error) {
	w.RemovePlayer(playerID)
	team, ok := w.teams[teamID]
	if !ok {
		return false, ErrUnknownTeam
	}
	switch role {
	case Dispatcher:
		if team.Dispatcher != nil {
			return false, nil
		}
		team.Dispatcher = newPlayer(playerID, name, Dispatcher)
	case Agent:
		team.Agents = append(team.Agents, newPlayer(playerID, name, Agent))
	default:
		return false, nil
	}
	w.version++
	return true, nil
}

// RemovePlayer 在所有队伍中查找并移除玩家，不存在时为 no-op
func (w *World) RemovePlayer(playerID uint64) bool {
	for _, id := range w.order {
		if w.teams[id].remove(playerID) {
			w.version++
			return true
		}
	}
	return false
}

// RenamePlayer 原地修改名字；调用方负责清洗（不得传入空名）
func (w *World) RenamePlayer(playerID uint64, name string) bool {
	p := w.Player(playerID)
	if p == nil {
		return false
	}
	if p.Name != name {
		p.Name = name
		w.version++
	}
	return true
}

// Player 可变查找，未找到返回 nil
func (w *World) Player(playerID uint64) *Player {
	for _, id := range w.order {
		if p := w.teams[id].find(playerID); p != nil {
			return p
		}
	}
	return nil
}

// Lookup 只读查找，返回副本与所属队伍 ID
func (w *World) Lookup(playerID uint64) (Player, uint64, bool) {
	for _, id := range w.order {
		if p := w.teams[id].find(playerID); p != nil {
			return *p, id, true
		}
	}
	return Player{}, 0, false
}

// AdvancePlayer 按输入推进玩家，玩家不存在时返回 false
func (w *World) AdvancePlayer(playerID uint64, dt float32, in Input) bool {
	p := w.Player(playerID)
	if p == nil {
		return false
	}
	p.Advance(dt, in)
	return true
}

// PlayerCount 所有队伍中的玩家总数
func (w *World) PlayerCount() int {
	n := 0
	for _, t := range w.teams {
		n += len(t.Agents)
		if t.Dispatcher != nil {
			n++
		}
	}
	return n
}
