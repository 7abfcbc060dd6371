package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

const (
	defaultPongWait = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// wsConn implements chat.Peer for WebSocket connections.
// 一条 WebSocket 消息对应一条聊天消息，由 WebSocket 自身分帧。
type wsConn struct {
	id           string
	conn         *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeChan chan struct{}
}

func newWSConn(c *websocket.Conn, opt Options) *wsConn {
	return &wsConn{
		id:           uuid.New().String(),
		conn:         c,
		remoteAddr:   c.RemoteAddr().String(),
		writeTimeout: opt.WriteTimeout,
		closeChan:    make(chan struct{}),
	}
}

func (w *wsConn) ID() string         { return w.id }
func (w *wsConn) RemoteAddr() string { return w.remoteAddr }
func (w *wsConn) Transport() string  { return WebSocket }
func (w *wsConn) Closed() bool       { return w.closed.Load() }

func (w *wsConn) Send(msg string) error {
	if w.closed.Load() {
		return ErrConnection.wrap("send", net.ErrClosed)
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.writeTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return ErrConnection.wrap("websocket write", err)
	}
	return nil
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		close(w.closeChan)
		err = w.conn.Close()
	})
	return err
}

// WSServer 让浏览器等 WebSocket 客户端加入同一个广播
type WSServer struct {
	hub  *chat.Hub
	opt  Options
	Path string // WebSocket endpoint path, defaults to "/ws"

	upgrader websocket.Upgrader

	mu     sync.Mutex
	ln     net.Listener
	server *http.Server
}

func NewWSServer(hub *chat.Hub, opt Options) *WSServer {
	return &WSServer{
		hub:  hub,
		opt:  opt,
		Path: "/ws",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (ws *WSServer) Name() string { return WebSocket }

// Handler 返回挂载了 WebSocket 端点的 http.Handler
func (ws *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ws.Path, ws.handleConnection)
	return mux
}

func (ws *WSServer) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ErrBind.wrap(addr, err)
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.ln != nil {
		_ = ln.Close()
		return fmt.Errorf("websocket server already listening on %s", ws.ln.Addr())
	}
	ws.ln = ln
	ws.server = &http.Server{
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.L().Sugar().Infow("websocket_listen", "addr", ln.Addr().String(), "path", ws.Path)
	return nil
}

func (ws *WSServer) Addr() net.Addr {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.ln == nil {
		return nil
	}
	return ws.ln.Addr()
}

// Serve 运行 HTTP 服务直到 ctx 结束；已升级的连接不受影响
func (ws *WSServer) Serve(ctx context.Context) error {
	ws.mu.Lock()
	ln, server := ws.ln, ws.server
	ws.mu.Unlock()
	if ln == nil {
		return errors.New("websocket server is not listening")
	}

	ws.hub.Start(context.WithoutCancel(ctx))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-stop:
		}
	}()

	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrServerClosed
	}
	return err
}

func (ws *WSServer) Close() error {
	ws.mu.Lock()
	server := ws.server
	ws.mu.Unlock()
	if server == nil {
		return nil
	}
	// Shutdown 不会等待已 Hijack 的 WebSocket 连接
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (ws *WSServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		logger.L().Sugar().Warnw("websocket_upgrade_error", "addr", r.RemoteAddr, "err", err)
		return
	}
	if ws.opt.MaxFrameSize > 0 {
		conn.SetReadLimit(int64(ws.opt.MaxFrameSize))
	}

	peer := newWSConn(conn, ws.opt)
	if !ws.hub.Join(peer) {
		_ = conn.Close()
		return
	}
	logger.L().Sugar().Infow("session_open", "conn", peer.ID(), "addr", peer.RemoteAddr(), "transport", WebSocket)

	wait := defaultPongWait
	if ws.opt.ReadTimeout > 0 {
		wait = ws.opt.ReadTimeout
	}
	go ws.pingLoop(peer, wait*9/10)
	err = ws.readLoop(peer, wait)

	ws.hub.Leave(peer)
	log := logger.L().Sugar().With("conn", peer.ID(), "addr", peer.RemoteAddr(), "transport", WebSocket)
	switch {
	case errors.Is(err, ErrProtocol):
		observe.IncProtocolError()
		log.Warnw("session_protocol_error", "code", ErrorCode(err), "err", err)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, net.ErrClosed):
		log.Infow("session_closed", "reason", "closed")
	default:
		log.Warnw("session_read_error", "err", err)
	}
}

func (ws *WSServer) readLoop(peer *wsConn, wait time.Duration) error {
	conn := peer.conn
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		if !utf8.Valid(data) {
			return ErrProtocol.wrap("payload is not valid utf-8", nil)
		}
		ws.hub.Publish(chat.FormatMessage(peer.RemoteAddr(), string(data)))
	}
}

// pingLoop 定期发送 ping，对端的 pong 会延长读超时
func (ws *WSServer) pingLoop(peer *wsConn, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := peer.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-peer.closeChan:
			return
		}
	}
}
