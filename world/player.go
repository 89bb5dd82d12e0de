package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// PlayerSpeed 玩家移动速度（世界单位/秒）
const PlayerSpeed float32 = 50

// Role 玩家在队伍中的角色
type Role uint8

const (
	// Dispatcher 每队至多一人
	Dispatcher Role = iota
	// Agent 每队人数不限
	Agent
)

func (r Role) String() string {
	switch r {
	case Dispatcher:
		return "dispatcher"
	case Agent:
		return "agent"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid 判断角色是否为已知取值
func (r Role) Valid() bool {
	return r == Dispatcher || r == Agent
}

// Input 客户端一帧的输入：移动轴与本帧累计的转向量
type Input struct {
	X        float32
	Y        float32
	Rotation float32
}

// Player 队伍中的玩家实体（服务端权威状态）
type Player struct {
	ID       uint64     `msgpack:"id" json:"id"`
	Name     string     `msgpack:"name" json:"name"`
	Position mgl32.Vec2 `msgpack:"pos" json:"position"`
	Rotation float32    `msgpack:"rot" json:"rotation"`
	Role     Role       `msgpack:"role" json:"role"`
}

func newPlayer(id uint64, name string, role Role) *Player {
	return &Player{ID: id, Name: name, Role: role}
}

// Advance 推进一帧：转向不乘 dt（已是本帧累计量），
// 移动在玩家自身朝向坐标系下进行，再乘速度与 dt。
func (p *Player) Advance(dt float32, in Input) {
	p.Rotation -= in.Rotation
	step := mgl32.Rotate2D(-p.Rotation).Mul2x1(mgl32.Vec2{in.X, in.Y})
	p.Position = p.Position.Add(step.Mul(PlayerSpeed * dt))
}
