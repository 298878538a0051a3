// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/executor"
	"github.com/bureau-foundation/sensor-server/lib/httpwire"
	"github.com/bureau-foundation/sensor-server/lib/netutil"
)

const (
	// DefaultReadTimeout bounds the wait for each request and the TLS
	// handshake. It is also advertised as the keep-alive timeout.
	DefaultReadTimeout = 10 * time.Second

	// DefaultRequestLimit is the number of requests served on one
	// connection before it is closed.
	DefaultRequestLimit = 100

	writeTimeout = 10 * time.Second
)

// Handler fills in response for request. Status, body and any extra
// headers are the handler's; Server, Date and the connection headers
// are set by the Server afterwards.
type Handler func(ctx context.Context, request *httpwire.Request, response *httpwire.Response)

// Config configures a Server.
type Config struct {
	// Address is the TCP listen address, e.g. "[::]:9738". Required.
	Address string

	// TLS switches the server to HTTPS. Nil serves plaintext HTTP.
	// Connections whose first byte does not match the configured mode
	// are closed without a response.
	TLS *tls.Config

	// Handlers maps methods to handlers. A HEAD request without its
	// own handler is served by the GET handler with the body dropped.
	// Methods without a handler are answered with 501.
	Handlers map[httpwire.Method]Handler

	// Pool runs one job per connection for its whole keep-alive
	// lifetime. Required.
	Pool *executor.Pool

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Clock stamps the Date header. Defaults to clock.Real().
	Clock clock.Clock

	// ReadTimeout defaults to DefaultReadTimeout.
	ReadTimeout time.Duration

	// RequestLimit defaults to DefaultRequestLimit.
	RequestLimit int

	// ServerName is the Server header value. Required.
	ServerName string

	// Metrics records connection and request counts. Optional.
	Metrics *Metrics
}

// Server is an HTTP/1.x server speaking the httpwire format over TCP,
// optionally wrapped in TLS.
type Server struct {
	address      string
	tlsConfig    *tls.Config
	handlers     map[httpwire.Method]Handler
	pool         *executor.Pool
	logger       *slog.Logger
	clock        clock.Clock
	readTimeout  time.Duration
	requestLimit int
	serverName   string
	metrics      *Metrics

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr

	mu          sync.Mutex
	connections map[net.Conn]struct{}
	shutdown    bool
	active      sync.WaitGroup
}

// New creates a server. Call Serve to start accepting connections.
func New(config Config) *Server {
	if config.Address == "" {
		panic("httpserver.Server: Address is required")
	}
	if config.Pool == nil {
		panic("httpserver.Server: Pool is required")
	}
	if config.Logger == nil {
		panic("httpserver.Server: Logger is required")
	}
	if config.ServerName == "" {
		panic("httpserver.Server: ServerName is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.RequestLimit == 0 {
		config.RequestLimit = DefaultRequestLimit
	}
	handlers := make(map[httpwire.Method]Handler, len(config.Handlers))
	for method, handler := range config.Handlers {
		handlers[method] = handler
	}
	return &Server{
		address:      config.Address,
		tlsConfig:    config.TLS,
		handlers:     handlers,
		pool:         config.Pool,
		logger:       config.Logger,
		clock:        config.Clock,
		readTimeout:  config.ReadTimeout,
		requestLimit: config.RequestLimit,
		serverName:   config.ServerName,
		metrics:      config.Metrics,
		ready:        make(chan struct{}),
		connections:  make(map[net.Conn]struct{}),
	}
}

// Ready returns a channel that is closed once the server is bound and
// accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled. Each connection is
// handed to the pool as one job. On cancellation the listener and all
// open connections are closed, and Serve returns once every connection
// job has finished.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		}
		listener.Close()
		s.closeConnections()
	}()

	s.logger.Info("sensor server listening",
		"address", s.addr.String(),
		"tls", s.tlsConfig != nil,
	)

	var acceptErr error
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if netutil.IsTimeout(err) {
				continue
			}
			acceptErr = fmt.Errorf("accepting on %s: %w", s.addr, err)
			break
		}
		if !s.track(conn) {
			conn.Close()
			break
		}
		job := executor.Func(func() {
			defer s.untrack(conn)
			s.serveConnection(ctx, conn)
		})
		if err := s.pool.TrySubmit(job); err != nil {
			s.logger.Warn("dropping connection", "remote", conn.RemoteAddr().String(), "error", err)
			s.untrack(conn)
		}
	}

	listener.Close()
	s.closeConnections()
	s.active.Wait()
	s.logger.Info("sensor server stopped")
	return acceptErr
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.connections[conn] = struct{}{}
	s.active.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.connections, conn)
	s.mu.Unlock()
	s.active.Done()
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	for conn := range s.connections {
		conn.Close()
	}
}

// looksLikeTLS reports whether the first byte of a connection starts a
// TLS record (handshake content type 0x16) or an SSLv2 hello (high bit
// set).
func looksLikeTLS(first byte) bool {
	return first&0x80 != 0 || first == 0x16
}

// peekedConn replays bytes already buffered by the sniffing reader.
type peekedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *peekedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (s *Server) serveConnection(ctx context.Context, conn net.Conn) {
	s.metrics.connectionOpened()
	defer s.metrics.connectionClosed()

	logger := s.logger.With(
		"connection", uuid.NewString(),
		"remote", conn.RemoteAddr().String(),
	)
	if ctx.Err() != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	sniffer := bufio.NewReader(conn)
	first, err := sniffer.Peek(1)
	if err != nil {
		if !netutil.IsOrderlyClose(err) {
			logger.Debug("reading first byte failed", "error", err)
		}
		return
	}
	isTLS := looksLikeTLS(first[0])
	if isTLS != (s.tlsConfig != nil) {
		s.metrics.connectionAccepted("mismatch")
		logger.Debug("closing connection in the wrong transport mode", "client_tls", isTLS)
		return
	}

	var stream net.Conn = &peekedConn{Conn: conn, reader: sniffer}
	reader := sniffer
	if s.tlsConfig != nil {
		s.metrics.connectionAccepted("https")
		tlsConn := tls.Server(stream, s.tlsConfig)
		handshakeCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
		err := tlsConn.HandshakeContext(handshakeCtx)
		cancel()
		if err != nil {
			logger.Debug("tls handshake failed", "error", err)
			return
		}
		stream = tlsConn
		reader = bufio.NewReader(tlsConn)
	} else {
		s.metrics.connectionAccepted("http")
	}

	for count := 1; ; count++ {
		if ctx.Err() != nil {
			return
		}
		if !s.serveRequest(ctx, logger, stream, reader, count) {
			return
		}
	}
}

// serveRequest reads, dispatches and answers one request. It returns
// whether the connection stays open for another.
func (s *Server) serveRequest(ctx context.Context, logger *slog.Logger, conn net.Conn, reader *bufio.Reader, count int) bool {
	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	request, err := httpwire.ReadRequest(reader, conn)
	started := time.Now()
	if err != nil {
		status, ok := httpwire.StatusForError(err)
		if !ok {
			if !netutil.IsOrderlyClose(err) {
				logger.Debug("reading request failed", "error", err)
			}
			return false
		}
		protocol := httpwire.HTTP11
		if request != nil {
			protocol = request.Protocol
		}
		logger.Debug("malformed request", "status", int(status), "error", err)
		response := httpwire.NewResponse(protocol)
		response.SetText(status, err.Error())
		s.finish(response, false)
		s.write(logger, conn, response)
		s.metrics.requestServed(methodLabel(request), int(status), time.Since(started))
		return false
	}

	response := httpwire.NewResponse(request.Protocol)
	keepAlive := request.KeepAlive() && count < s.requestLimit
	if request.Protocol == httpwire.HTTP11 && !request.Headers.Has("Host") {
		response.SetText(httpwire.StatusBadRequest, "HTTP 1.1: Mandatory Host header is missing")
		keepAlive = false
	} else {
		s.dispatch(ctx, logger, request, response)
	}
	s.finish(response, keepAlive)
	if !request.Method.ResponseHasBody() {
		response.Body = nil
	}

	written := s.write(logger, conn, response)
	s.metrics.requestServed(request.Method.String(), int(response.Status), time.Since(started))
	logger.Debug("request served",
		"method", request.MethodToken,
		"target", request.Target,
		"status", int(response.Status),
		"bytes", len(response.Body),
	)
	return written && keepAlive
}

func (s *Server) dispatch(ctx context.Context, logger *slog.Logger, request *httpwire.Request, response *httpwire.Response) {
	handler, ok := s.handlers[request.Method]
	if !ok && request.Method == httpwire.MethodHead {
		handler, ok = s.handlers[httpwire.MethodGet]
	}
	if !ok {
		response.SetText(httpwire.StatusNotImplemented,
			fmt.Sprintf("Method %q is not implemented (yet)", request.MethodToken))
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("handler panicked",
				"method", request.MethodToken,
				"target", request.Target,
				"panic", recovered,
			)
			response.Headers = httpwire.Headers{}
			response.SetText(httpwire.StatusInternalServerError, "")
		}
	}()
	handler(ctx, request, response)
}

// finish adds the headers every response carries.
func (s *Server) finish(response *httpwire.Response, keepAlive bool) {
	response.Headers.Set("Server", s.serverName)
	response.Headers.Set("Date", httpwire.FormatDate(s.clock.Now()))
	if keepAlive {
		response.Headers.Set("Connection", "keep-alive")
		response.Headers.Set("Keep-Alive",
			fmt.Sprintf("timeout=%d, max=%d", int(s.readTimeout/time.Second), s.requestLimit))
		return
	}
	response.Headers.Set("Connection", "close")
}

func (s *Server) write(logger *slog.Logger, conn net.Conn, response *httpwire.Response) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := response.Write(conn); err != nil {
		if !netutil.IsOrderlyClose(err) {
			logger.Debug("writing response failed", "error", err)
		}
		return false
	}
	return true
}

func methodLabel(request *httpwire.Request) string {
	if request == nil {
		return "UNKNOWN"
	}
	return request.Method.String()
}
