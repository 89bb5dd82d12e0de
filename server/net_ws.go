package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	spectatorWriteWait  = 5 * time.Second
	spectatorPongWait   = 60 * time.Second
	spectatorPingPeriod = spectatorPongWait * 9 / 10
)

// spectatorConn 观战者的 WebSocket 包装：只写快照，读端仅用于感知断开
type spectatorConn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	closed bool
}

func newSpectatorConn(ws *websocket.Conn) *spectatorConn {
	return &spectatorConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *spectatorConn) Enqueue(b []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		// 观战者跟不上时丢帧，不影响 Tick
	}
}

// Close 关闭发送队列，写协程退出时关闭底层连接
func (c *spectatorConn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping 保活
func (c *spectatorConn) writePump() {
	ping := time.NewTicker(spectatorPingPeriod)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(spectatorWriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(spectatorWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 丢弃观战者发来的消息，读失败时请求 Tick 协程移除
func (c *spectatorConn) readPump(h *spectatorHub) {
	defer c.ws.Close()
	defer h.requestLeave(c.id)
	c.ws.SetReadLimit(1 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(spectatorPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(spectatorPongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 观战只读，允许所有来源
		return true
	},
}

// HandleSpectate GET /ws/spectate：每个 Tick 推送一份 JSON 世界快照
func (s *Server) HandleSpectate(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("spectate upgrade: %v", err)
		return
	}
	c := newSpectatorConn(ws)
	if !s.spectators.requestJoin(c) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"),
			time.Now().Add(spectatorWriteWait))
		_ = ws.Close()
		return
	}
	go c.writePump()
	go c.readPump(s.spectators)
}
