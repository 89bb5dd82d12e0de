package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"teamarena/config"
	"teamarena/presence"
	"teamarena/protocol"
	"teamarena/world"
)

const (
	pendingDepth = 128 // 已 accept、等待 Tick 领取的连接
	soundDepth   = 64  // 待广播音效
	acceptRetry  = 50 * time.Millisecond
)

// Server 权威服务器：唯一的 Tick 协程拥有世界模型与全部客户端。
// 其它协程（accept、HTTP、观战连接）只通过通道与原子量和它交互。
type Server struct {
	cfg      *config.Config
	world    *world.World
	names    NamePolicy
	dt       float32
	presence presence.Publisher
	runID    string

	// 以下仅由 Tick 协程访问
	clients    []*Client // 按接入顺序
	nextID     uint64
	joins      []joinRequest
	published  uint64 // 最近一次推送到 presence 的世界版本
	spectators *spectatorHub

	pending chan net.Conn
	sounds  chan protocol.PlaySound
	done    chan struct{}
	stop    sync.Once

	tickSeq  atomic.Uint64
	snapshot atomic.Pointer[world.Snapshot]
	metrics  *Metrics
}

// Option 构造参数
type Option func(*Server)

// WithPresence 设置名单镜像，默认 presence.Nop
func WithPresence(p presence.Publisher) Option {
	return func(s *Server) { s.presence = p }
}

// WithWorld 替换默认的红蓝两队世界
func WithWorld(w *world.World) Option {
	return func(s *Server) { s.world = w }
}

// NewServer 按配置创建服务器，尚未开始监听
func NewServer(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		world:      world.New(world.DefaultTeams()...),
		names:      NamePolicy{MaxWidth: cfg.NameMaxWidth, Fallback: cfg.DefaultName},
		dt:         float32(cfg.TickPeriod.Seconds()),
		presence:   presence.Nop{},
		runID:      uuid.NewString(),
		spectators: newSpectatorHub(),
		pending:    make(chan net.Conn, pendingDepth),
		sounds:     make(chan protocol.PlaySound, soundDepth),
		done:       make(chan struct{}),
		metrics:    &Metrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := s.world.Snapshot()
	s.snapshot.Store(&empty)
	s.published = s.world.Version()
	return s
}

// RunID 本进程的唯一标识
func (s *Server) RunID() string { return s.runID }

// Metrics 运行指标
func (s *Server) Metrics() *Metrics { return s.metrics }

// Snapshot 最近一次广播的世界快照，可在任意协程读取
func (s *Server) Snapshot() world.Snapshot { return *s.snapshot.Load() }

// TickSeq 已完成的 Tick 数
func (s *Server) TickSeq() uint64 { return s.tickSeq.Load() }

// QueueSound 投递一个音效，下一次广播时随 GameState 之后发出；队列满返回 false
func (s *Server) QueueSound(ps protocol.PlaySound) bool {
	select {
	case s.sounds <- ps:
		return true
	default:
		return false
	}
}

// ListenAndServe 监听 cfg.GameAddr 并运行到 ctx 结束或出现致命错误
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.GameAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.GameAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定监听器上接入连接并驱动 Tick 循环。
// ctx 结束返回 nil；未预期的 I/O 错误（FatalOnUnexpectedIO 为 true 时）原样返回。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	Log.Infof("game server %s listening on %s (tick=%s)", s.runID, ln.Addr(), s.cfg.TickPeriod)
	go s.acceptLoop(ln)
	defer s.shutdown(ln)
	return s.Run(ctx)
}

// acceptLoop 独立协程：阻塞 accept，把连接交给 Tick 协程
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			Log.Warnf("accept: %v", err)
			select {
			case <-time.After(acceptRetry):
				continue
			case <-s.done:
				return
			}
		}
		select {
		case s.pending <- conn:
		case <-s.done:
			_ = conn.Close()
			return
		}
	}
}

// shutdown 关闭监听器与所有连接，可重复调用
func (s *Server) shutdown(ln net.Listener) {
	s.stop.Do(func() {
		close(s.done)
		_ = ln.Close()
		for _, c := range s.clients {
			_ = c.ch.Close()
		}
		s.clients = nil
	drain:
		for {
			select {
			case conn := <-s.pending:
				_ = conn.Close()
			default:
				break drain
			}
		}
		s.spectators.closeAll()
		s.metrics.SetActive(0)
		Log.Infof("game server %s stopped", s.runID)
	})
}
