// Package presence 把队伍名单镜像到外部存储，供大厅、看板等服务读取。
// Tick 线程只做非阻塞投递，真正的写出在后台协程完成。
package presence

import (
	"teamarena/world"
)

// Publisher 名单发布者；Publish 不得阻塞调用方
type Publisher interface {
	Publish(version uint64, roster []world.RosterEntry)
	Close() error
}

// Nop 不做任何事的发布者（未配置外部存储时使用）
type Nop struct{}

func (Nop) Publish(uint64, []world.RosterEntry) {}
func (Nop) Close() error                        { return nil }

// Update 一次待发布的名单
type Update struct {
	Version uint64              `json:"version"`
	Roster  []world.RosterEntry `json:"roster"`
}

// mailbox 容量为 1 的"最新值"邮箱：新值覆盖未被取走的旧值
type mailbox struct {
	ch chan Update
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan Update, 1)}
}

func (m *mailbox) put(u Update) {
	for {
		select {
		case m.ch <- u:
			return
		default:
		}
		// 邮箱已满：丢弃旧值再重试
		select {
		case <-m.ch:
		default:
		}
	}
}
