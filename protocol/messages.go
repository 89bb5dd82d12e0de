package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vmihailenco/msgpack/v5"

	"teamarena/world"
)

var (
	// ErrMalformed 载荷无法解码为任何已知消息
	ErrMalformed = errors.New("protocol: malformed payload")
	// ErrUnknownKind 信封中的消息类型未知
	ErrUnknownKind = errors.New("protocol: unknown message kind")
)

// Kind 消息类型标签，两个方向共用一个编号空间
type Kind uint8

const (
	KindAssignID Kind = iota + 1
	KindGameState
	KindPlaySound
	KindInput
	KindJoinTeam
	KindSetName
)

// envelope 线上载荷：类型标签 + 原始 msgpack 消息体
type envelope struct {
	Kind Kind               `msgpack:"k"`
	Body msgpack.RawMessage `msgpack:"b"`
}

// SoundEffect 音效标签（仅图形客户端消费）
type SoundEffect uint8

const (
	SoundPowerup SoundEffect = iota
	SoundGun
	SoundExplosion
	SoundLaserCharge
	SoundLaserFire
)

// ParseSoundEffect 名字到音效标签
func ParseSoundEffect(name string) (SoundEffect, bool) {
	switch name {
	case "powerup":
		return SoundPowerup, true
	case "gun":
		return SoundGun, true
	case "explosion":
		return SoundExplosion, true
	case "laser_charge":
		return SoundLaserCharge, true
	case "laser_fire":
		return SoundLaserFire, true
	default:
		return 0, false
	}
}

// ServerMessage 服务端 -> 客户端
type ServerMessage interface {
	isServerMessage()
	kind() Kind
}

// ClientMessage 客户端 -> 服务端
type ClientMessage interface {
	isClientMessage()
	kind() Kind
}

// AssignID 连接建立后发送的第一帧
type AssignID struct {
	ID uint64 `msgpack:"id"`
}

// GameState 每 Tick 发送一次的完整世界快照
type GameState struct {
	State world.Snapshot `msgpack:"state"`
}

// PlaySound 音效提示
type PlaySound struct {
	Effect   SoundEffect `msgpack:"effect"`
	Position mgl32.Vec2  `msgpack:"pos"`
}

// Input 移动轴与转向量
type Input struct {
	X        float32 `msgpack:"x"`
	Y        float32 `msgpack:"y"`
	Rotation float32 `msgpack:"r"`
}

// JoinTeam 请求以某角色加入队伍
type JoinTeam struct {
	TeamID uint64     `msgpack:"team"`
	Role   world.Role `msgpack:"role"`
	Name   string     `msgpack:"name"`
}

// SetName 修改显示名
type SetName struct {
	Name string `msgpack:"name"`
}

func (AssignID) isServerMessage()  {}
func (GameState) isServerMessage() {}
func (PlaySound) isServerMessage() {}
func (Input) isClientMessage()     {}
func (JoinTeam) isClientMessage()  {}
func (SetName) isClientMessage()   {}

func (AssignID) kind() Kind  { return KindAssignID }
func (GameState) kind() Kind { return KindGameState }
func (PlaySound) kind() Kind { return KindPlaySound }
func (Input) kind() Kind     { return KindInput }
func (JoinTeam) kind() Kind  { return KindJoinTeam }
func (SetName) kind() Kind   { return KindSetName }

// Axes 转换为世界模型使用的输入
func (in Input) Axes() world.Input {
	return world.Input{X: in.X, Y: in.Y, Rotation: in.Rotation}
}

func marshal(k Kind, body any) ([]byte, error) {
	raw, err := msgpack.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %d body: %w", k, err)
	}
	return msgpack.Marshal(&envelope{Kind: k, Body: raw})
}

// MarshalServer 序列化服务端消息（不含帧头）
func MarshalServer(m ServerMessage) ([]byte, error) {
	return marshal(m.kind(), m)
}

// MarshalClient 序列化客户端消息（不含帧头）
func MarshalClient(m ClientMessage) ([]byte, error) {
	return marshal(m.kind(), m)
}

func openEnvelope(payload []byte) (envelope, error) {
	var env envelope
	if err := msgpack.Unmarshal(payload, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}

func decodeBody(env envelope, v any) error {
	if err := msgpack.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("%w: kind %d: %v", ErrMalformed, env.Kind, err)
	}
	return nil
}

// UnmarshalClient 解析客户端载荷；无法识别一律返回 ErrMalformed
func UnmarshalClient(payload []byte) (ClientMessage, error) {
	env, err := openEnvelope(payload)
	if err != nil {
		return nil, err
	}
	switch env.Kind {
	case KindInput:
		var m Input
		if err := decodeBody(env, &m); err != nil {
			return nil, err
		}
		if !finite(m.X, m.Y, m.Rotation) {
			return nil, fmt.Errorf("%w: non-finite input (%v, %v, %v)", ErrMalformed, m.X, m.Y, m.Rotation)
		}
		return m, nil
	case KindJoinTeam:
		var m JoinTeam
		if err := decodeBody(env, &m); err != nil {
			return nil, err
		}
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, m.Role)
		}
		return m, nil
	case KindSetName:
		var m SetName
		if err := decodeBody(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %w %d", ErrMalformed, ErrUnknownKind, env.Kind)
	}
}

// finite NaN/Inf 一旦进入位置就无法恢复，且快照无法编码为 JSON
func finite(vs ...float32) bool {
	for _, v := range vs {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// UnmarshalServer 解析服务端载荷
func UnmarshalServer(payload []byte) (ServerMessage, error) {
	env, err := openEnvelope(payload)
	if err != nil {
		return nil, err
	}
	switch env.Kind {
	case KindAssignID:
		var m AssignID
		if err := decodeBody(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindGameState:
		var m GameState
		if err := decodeBody(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindPlaySound:
		var m PlaySound
		if err := decodeBody(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %w %d", ErrMalformed, ErrUnknownKind, env.Kind)
	}
}
