package server

import (
	"encoding/json"
	"sync/atomic"

	"teamarena/world"
)

const spectatorQueueDepth = 16

// spectatorHub 管理观战连接。HTTP/读协程只通过 joinCh/leaveCh 提交请求，
// 集合本身只在 Tick 协程中修改。
type spectatorHub struct {
	joinCh  chan *spectatorConn
	leaveCh chan string
	done    chan struct{}
	conns   map[string]*spectatorConn
	count   atomic.Int64
}

func newSpectatorHub() *spectatorHub {
	return &spectatorHub{
		joinCh:  make(chan *spectatorConn, spectatorQueueDepth),
		leaveCh: make(chan string, spectatorQueueDepth),
		done:    make(chan struct{}),
		conns:   make(map[string]*spectatorConn),
	}
}

// requestJoin 提交新观战者；排队满或服务已停止返回 false
func (h *spectatorHub) requestJoin(c *spectatorConn) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.joinCh <- c:
		return true
	default:
		return false
	}
}

// requestLeave 请求在 Tick 协程中移除观战者，服务停止后直接返回
func (h *spectatorHub) requestLeave(id string) {
	select {
	case h.leaveCh <- id:
	case <-h.done:
	}
}

// sync 非阻塞地处理积压的加入与离开
func (h *spectatorHub) sync() {
	for {
		select {
		case c := <-h.joinCh:
			h.conns[c.id] = c
			Log.Infof("spectator %s joined", c.id)
		case id := <-h.leaveCh:
			if c, ok := h.conns[id]; ok {
				c.Close()
				delete(h.conns, id)
				Log.Infof("spectator %s left", id)
			}
		default:
			h.count.Store(int64(len(h.conns)))
			return
		}
	}
}

type spectatorFrame struct {
	Type  string         `json:"type"`
	Tick  uint64         `json:"tick"`
	State world.Snapshot `json:"state"`
}

// broadcast 编码一次 JSON 快照，推给所有观战者（队列满则丢弃）
func (h *spectatorHub) broadcast(tick uint64, snap world.Snapshot) {
	if len(h.conns) == 0 {
		return
	}
	b, err := json.Marshal(spectatorFrame{Type: "state", Tick: tick, State: snap})
	if err != nil {
		Log.Errorf("encode spectator frame: %v", err)
		return
	}
	for _, c := range h.conns {
		c.Enqueue(b)
	}
}

// closeAll 关闭全部观战连接，之后的加入请求都会被拒绝
func (h *spectatorHub) closeAll() {
	close(h.done)
	for id, c := range h.conns {
		c.Close()
		delete(h.conns, id)
	}
	h.count.Store(0)
}

// Len 当前观战者数量，可在任意协程读取
func (h *spectatorHub) Len() int64 { return h.count.Load() }
