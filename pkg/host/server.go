package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/perf"
)

// Handler executes one host command. The returned value is marshalled as the
// response result.
type Handler interface {
	Handle(ctx context.Context, cmd Command, args json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, cmd Command, args json.RawMessage) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
	return f(ctx, cmd, args)
}

// clientConn serialises writes to one connection
type clientConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// Server is the monitor's socket server. Each request runs in its own
// goroutine so a slow command never holds up the others on the connection.
type Server struct {
	socketPath string
	pidPath    string
	listener   net.Listener
	handler    Handler
	logger     *zap.Logger

	clients   map[*clientConn]struct{}
	clientsMu sync.RWMutex
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Called when a client connects or disconnects
	OnConnect    func()
	OnDisconnect func()
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLogger sets the server's logger
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithSocketPaths overrides the socket and pidfile locations
func WithSocketPaths(socketPath, pidPath string) ServerOption {
	return func(s *Server) {
		s.socketPath = socketPath
		s.pidPath = pidPath
	}
}

// NewServer creates a new monitor server for a session
func NewServer(sessionID string, handler Handler, opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		socketPath: SocketPath(sessionID),
		pidPath:    PidPath(sessionID),
		handler:    handler,
		logger:     zap.NewNop(),
		clients:    make(map[*clientConn]struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins listening for client connections
func (s *Server) Start() error {
	// Check if another monitor is already running
	if err := s.checkAndClaimPid(); err != nil {
		return err
	}

	// Remove stale socket if exists (safe now that we own the pidfile)
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		os.Remove(s.pidPath)
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// checkAndClaimPid checks for an existing monitor and claims the pidfile
func (s *Server) checkAndClaimPid() error {
	if data, err := os.ReadFile(s.pidPath); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pid, err := strconv.Atoi(pidStr); err == nil && pid > 0 && pid != os.Getpid() {
			if process, err := os.FindProcess(pid); err == nil {
				// On Unix, FindProcess always succeeds, so we need to send signal 0
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("monitor already running with pid %d", pid)
				}
			}
		}
		// Stale pidfile, remove it
		os.Remove(s.pidPath)
	}

	pid := os.Getpid()
	if err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}

	return nil
}

// Stop shuts down the server and waits for in-flight requests
func (s *Server) Stop() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.clientsMu.Lock()
	for client := range s.clients {
		client.conn.Close()
	}
	s.clientsMu.Unlock()
	s.wg.Wait()
	os.Remove(s.socketPath)
	os.Remove(s.pidPath)
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// GetSocketPath returns the socket path
func (s *Server) GetSocketPath() string {
	return s.socketPath
}

// GetPidPath returns the pidfile path
func (s *Server) GetPidPath() string {
	return s.pidPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Debug("accept failed", zap.Error(err))
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleClient(conn)
	}
}

// handleClient reads newline-delimited requests until the client goes away
func (s *Server) handleClient(conn net.Conn) {
	defer s.wg.Done()
	client := &clientConn{conn: conn}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()
	if s.OnConnect != nil {
		s.OnConnect()
	}

	defer func() {
		conn.Close()
		s.clientsMu.Lock()
		delete(s.clients, client)
		s.clientsMu.Unlock()
		if s.OnDisconnect != nil {
			s.OnDisconnect()
		}
	}()

	scanner := bufio.NewScanner(conn)
	// Icon payloads can be large
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.logger.Debug("dropping malformed request", zap.Error(err))
			continue
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			s.dispatch(client, req)
		}()
	}
}

func (s *Server) dispatch(client *clientConn, req Request) {
	timer := perf.Start("host." + string(req.Command))
	resp := Response{ID: req.ID}

	result, err := s.safeHandle(req)
	if err != nil {
		resp.Error = err.Error()
		s.logger.Debug("command failed",
			zap.String("command", string(req.Command)),
			zap.Uint64("id", req.ID),
			zap.Error(err))
	} else if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			resp.Error = fmt.Sprintf("marshal result: %v", err)
		} else {
			resp.Result = data
		}
	}
	timer.Stop("id=" + strconv.FormatUint(req.ID, 10))

	if err := s.sendResponse(client, resp); err != nil {
		s.logger.Debug("send response failed", zap.Uint64("id", req.ID), zap.Error(err))
	}
}

func (s *Server) safeHandle(req Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in handler",
				zap.String("command", string(req.Command)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if req.Command == CmdPing {
		return struct{}{}, nil
	}
	return s.handler.Handle(s.ctx, req.Command, req.Args)
}

func (s *Server) sendResponse(client *clientConn, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	client.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err = client.conn.Write(append(data, '\n'))
	return err
}
