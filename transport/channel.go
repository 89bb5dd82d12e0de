package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"teamarena/protocol"
)

const (
	readChunkSize = 4096
	// inboundDepth 读协程与 Tick 之间的缓冲块数；满了读协程阻塞，由 TCP 流控兜底
	inboundDepth = 64
)

var (
	// ErrPeerClosed 对端已断开（EOF、连接被重置、管道破裂）
	ErrPeerClosed = errors.New("transport: peer closed")
	// ErrSendStalled 对端长时间不读，写在超时内无法完成
	ErrSendStalled = errors.New("transport: send stalled")
	// ErrUnexpectedIO 协议未设计处理的 I/O 错误
	ErrUnexpectedIO = errors.New("transport: unexpected i/o error")
)

// IsDisconnect 判断错误是否应按"客户端离开"处理（可恢复）
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrPeerClosed) || errors.Is(err, ErrSendStalled)
}

type chunk struct {
	data []byte
	err  error
}

// Channel 独占一条流式连接：缓冲入站字节并按帧拉取，出站按帧写出。
// Pull/Frames/Send 只允许 Tick 线程调用；读协程只碰 conn.Read 与 inbound。
type Channel struct {
	conn        net.Conn
	sendTimeout time.Duration
	inbound     chan chunk
	done        chan struct{}
	closeOnce   sync.Once
	buf         []byte
	cursor      int
	readErr     error
	bytesIn     uint64
	bytesOut    uint64
	framesOut   uint64
}

// NewChannel 包装连接并启动读协程。sendTimeout<=0 表示写不设期限。
func NewChannel(conn net.Conn, sendTimeout time.Duration) *Channel {
	c := &Channel{
		conn:        conn,
		sendTimeout: sendTimeout,
		inbound:     make(chan chunk, inboundDepth),
		done:        make(chan struct{}),
	}
	go c.readPump()
	return c
}

// RemoteAddr 对端地址
func (c *Channel) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// readPump 独立协程，阻塞读连接并把数据块交给 Tick 线程
func (c *Channel) readPump() {
	for {
		buf := make([]byte, readChunkSize)
		n, err := c.conn.Read(buf)
		if n > 0 {
			select {
			case c.inbound <- chunk{data: buf[:n]}:
			case <-c.done:
				return
			}
		}
		if err != nil {
			select {
			case c.inbound <- chunk{err: err}:
			case <-c.done:
			}
			return
		}
	}
}

// Pull 非阻塞地把已到达的字节并入缓冲区，返回本次新增字节数。
// 没有数据时返回 (0, nil)；对端断开返回 ErrPeerClosed；其他错误包装为 ErrUnexpectedIO。
// 错误一旦出现，之后每次调用都返回同一错误。
func (c *Channel) Pull() (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	n := 0
	for {
		select {
		case ch := <-c.inbound:
			if ch.err != nil {
				c.readErr = classify(ch.err)
				return n, c.readErr
			}
			c.buf = append(c.buf, ch.data...)
			n += len(ch.data)
			c.bytesIn += uint64(len(ch.data))
		default:
			return n, nil
		}
	}
}

// Frames 惰性产出当前缓冲区里的完整帧，每产出一帧即从缓冲区消费。
// 中途 break 时未产出的帧保留到下一次调用。产出的切片归调用方所有。
func (c *Channel) Frames() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		defer c.compact()
		for {
			payload, n, ok := protocol.NextFrame(c.buf[c.cursor:])
			if !ok {
				return
			}
			c.cursor += n
			if !yield(bytes.Clone(payload)) {
				return
			}
		}
	}
}

// Buffered 尚未被消费的入站字节数
func (c *Channel) Buffered() int {
	return len(c.buf) - c.cursor
}

func (c *Channel) compact() {
	if c.cursor == 0 {
		return
	}
	rest := copy(c.buf, c.buf[c.cursor:])
	c.buf = c.buf[:rest]
	c.cursor = 0
}

// Send 编码并写出一帧。暂时写不进（EAGAIN/EINTR）时继续重试直到写完；
// 超过 sendTimeout 仍未写完视为对端卡死，返回 ErrSendStalled。
func (c *Channel) Send(payload []byte) error {
	frame, err := protocol.Encode(payload)
	if err != nil {
		return err
	}
	if c.sendTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
			return classify(err)
		}
	}
	written := 0
	for written < len(frame) {
		n, err := c.conn.Write(frame[written:])
		written += n
		c.bytesOut += uint64(n)
		if err == nil {
			continue
		}
		if isTransient(err) {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("%w: %d of %d bytes after %s", ErrSendStalled, written, len(frame), c.sendTimeout)
		}
		return classify(err)
	}
	c.framesOut++
	return nil
}

// Close 关闭连接并让读协程退出，可重复调用
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Stats 连接级计数
type Stats struct {
	BytesIn   uint64
	BytesOut  uint64
	FramesOut uint64
}

// Stats 返回计数副本
func (c *Channel) Stats() Stats {
	return Stats{BytesIn: c.bytesIn, BytesOut: c.bytesOut, FramesOut: c.framesOut}
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}

// classify 把底层错误归类为 ErrPeerClosed 或 ErrUnexpectedIO
func classify(err error) error {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", ErrPeerClosed, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnexpectedIO, err)
	}
}
