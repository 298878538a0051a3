// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"log/slog"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/sensor-server/lib/clock"
	"github.com/bureau-foundation/sensor-server/lib/executor"
	"github.com/bureau-foundation/sensor-server/lib/httpwire"
	"github.com/bureau-foundation/sensor-server/lib/netutil"
	"github.com/bureau-foundation/sensor-server/lib/testutil"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoPath(_ context.Context, request *httpwire.Request, response *httpwire.Response) {
	response.SetBody(httpwire.MimeTextPlain, []byte("path="+request.URL.Path), httpwire.StatusOK)
}

// startServer runs a loopback server until the test ends. configure
// may adjust the config before the server is created.
func startServer(t *testing.T, configure func(*Config)) *Server {
	t.Helper()
	pool := executor.New(executor.Config{Name: "connections", Workers: 4, Logger: discardLogger()})
	t.Cleanup(pool.Drain)

	config := Config{
		Address:    "127.0.0.1:0",
		Handlers:   map[httpwire.Method]Handler{httpwire.MethodGet: echoPath},
		Pool:       pool,
		Logger:     discardLogger(),
		Clock:      clock.Fake(fixedNow),
		ServerName: "sensor-test/1.0",
	}
	if configure != nil {
		configure(&config)
	}
	server := New(config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server never became ready")
	return server
}

type client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, server *Server) *client {
	t.Helper()
	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &client{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *client) roundTrip(t *testing.T, raw string, method httpwire.Method) *httpwire.Response {
	t.Helper()
	if _, err := io.WriteString(c.conn, raw); err != nil {
		t.Fatalf("write request: %v", err)
	}
	response, err := httpwire.ReadResponse(c.reader, method)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return response
}

// expectClosed asserts that the server has closed the connection
// without sending anything more.
func (c *client) expectClosed(t *testing.T) {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(c.reader)
	if len(data) != 0 {
		t.Errorf("read %q after the response, want connection closed", data)
	}
	if netutil.IsTimeout(err) {
		t.Error("connection still open")
	}
}

func TestKeepAliveServesSequentialRequests(t *testing.T) {
	server := startServer(t, nil)
	c := dial(t, server)

	for _, path := range []string{"/one", "/two", "/three"} {
		response := c.roundTrip(t, "GET "+path+" HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodGet)
		if response.Status != httpwire.StatusOK {
			t.Fatalf("status = %v, want 200", response.Status)
		}
		if string(response.Body) != "path="+path {
			t.Errorf("body = %q, want path=%s", response.Body, path)
		}
		want := map[string]string{
			"Connection": "keep-alive",
			"Keep-Alive": "timeout=10, max=100",
			"Server":     "sensor-test/1.0",
			"Date":       "Wed, 04 Mar 2026 05:06:07 GMT",
		}
		for name, value := range want {
			if got := response.Headers.Value(name); got != value {
				t.Errorf("%s = %q, want %q", name, got, value)
			}
		}
	}
}

func TestConnectionClosesWithoutKeepAlive(t *testing.T) {
	server := startServer(t, nil)
	c := dial(t, server)

	response := c.roundTrip(t, "GET / HTTP/1.1\r\nHost: h\r\n\r\n", httpwire.MethodGet)
	if got := response.Headers.Value("Connection"); got != "close" {
		t.Errorf("Connection = %q, want close", got)
	}
	if response.Headers.Has("Keep-Alive") {
		t.Error("Keep-Alive header sent on a closing connection")
	}
	c.expectClosed(t)
}

func TestRequestLimitClosesConnection(t *testing.T) {
	server := startServer(t, func(config *Config) { config.RequestLimit = 2 })
	c := dial(t, server)

	request := "GET / HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n"
	first := c.roundTrip(t, request, httpwire.MethodGet)
	if got := first.Headers.Value("Keep-Alive"); got != "timeout=10, max=2" {
		t.Errorf("first Keep-Alive = %q", got)
	}
	second := c.roundTrip(t, request, httpwire.MethodGet)
	if got := second.Headers.Value("Connection"); got != "close" {
		t.Errorf("Connection at the limit = %q, want close", got)
	}
	c.expectClosed(t)
}

func TestDefaultRequestLimit(t *testing.T) {
	server := startServer(t, nil)
	c := dial(t, server)

	request := "GET / HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n"
	for count := 1; count < DefaultRequestLimit; count++ {
		response := c.roundTrip(t, request, httpwire.MethodGet)
		if got := response.Headers.Value("Connection"); got != "keep-alive" {
			t.Fatalf("Connection on request %d = %q, want keep-alive", count, got)
		}
	}
	last := c.roundTrip(t, request, httpwire.MethodGet)
	if got := last.Headers.Value("Connection"); got != "close" {
		t.Errorf("Connection on request %d = %q, want close", DefaultRequestLimit, got)
	}
	c.expectClosed(t)
}

func TestHeadUsesGetHandlerWithoutBody(t *testing.T) {
	server := startServer(t, nil)
	c := dial(t, server)

	response := c.roundTrip(t, "HEAD /abc HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodHead)
	if response.Status != httpwire.StatusOK {
		t.Fatalf("status = %v", response.Status)
	}
	if got := response.Headers.Value("Content-Length"); got != "9" {
		t.Errorf("Content-Length = %q, want the GET body length 9", got)
	}
	// The next response must start right after the HEAD headers.
	next := c.roundTrip(t, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n", httpwire.MethodGet)
	if string(next.Body) != "path=/x" {
		t.Errorf("body after HEAD = %q", next.Body)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		status httpwire.Status
		body   string
	}{
		{
			name:   "unknown method",
			raw:    "BREW /pot HTTP/1.1\r\nHost: h\r\n\r\n",
			status: httpwire.StatusNotImplemented,
			body:   `501 Not Implemented. Method "BREW" is not implemented (yet)`,
		},
		{
			name:   "known method without handler",
			raw:    "DELETE /x HTTP/1.1\r\nHost: h\r\n\r\n",
			status: httpwire.StatusNotImplemented,
			body:   `501 Not Implemented. Method "DELETE" is not implemented (yet)`,
		},
		{
			name:   "missing host",
			raw:    "GET / HTTP/1.1\r\n\r\n",
			status: httpwire.StatusBadRequest,
			body:   "400 Bad Request. HTTP 1.1: Mandatory Host header is missing",
		},
		{
			name:   "malformed request line",
			raw:    "GET /\r\n\r\n",
			status: httpwire.StatusBadRequest,
		},
		{
			name:   "oversized body",
			raw:    "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 2000000\r\n\r\n",
			status: httpwire.StatusPayloadTooLarge,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := startServer(t, nil)
			c := dial(t, server)
			response := c.roundTrip(t, test.raw, httpwire.MethodGet)
			if response.Status != test.status {
				t.Errorf("status = %v, want %v", response.Status, test.status)
			}
			if test.body != "" && string(response.Body) != test.body {
				t.Errorf("body = %q, want %q", response.Body, test.body)
			}
			if !strings.HasPrefix(string(response.Body), test.status.String()) {
				t.Errorf("body %q does not start with the status line text", response.Body)
			}
			if response.Headers.Value("Server") == "" || response.Headers.Value("Date") == "" {
				t.Error("error response lacks Server or Date")
			}
		})
	}
}

func TestTruncatedRequestGets400(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"request line", "GET / HT"},
		{"headers", "GET / HTTP/1.1\r\nHost: h\r\n"},
		{"content length body", "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 10\r\n\r\nabc"},
		{"inside a chunk", "POST / HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWi"},
		{"after a complete chunk", "POST / HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := startServer(t, func(config *Config) {
				config.Handlers[httpwire.MethodPost] = echoPath
			})
			c := dial(t, server)
			if _, err := io.WriteString(c.conn, test.raw); err != nil {
				t.Fatalf("write request: %v", err)
			}
			if err := c.conn.(*net.TCPConn).CloseWrite(); err != nil {
				t.Fatalf("CloseWrite: %v", err)
			}
			response, err := httpwire.ReadResponse(c.reader, httpwire.MethodPost)
			if err != nil {
				t.Fatalf("read response: %v", err)
			}
			if response.Status != httpwire.StatusBadRequest {
				t.Errorf("status = %v, want %v", response.Status, httpwire.StatusBadRequest)
			}
			if got := response.Headers.Value("Connection"); got != "close" {
				t.Errorf("Connection = %q, want close", got)
			}
			c.expectClosed(t)
		})
	}
}

func TestMalformedRequestClosesConnection(t *testing.T) {
	server := startServer(t, nil)
	c := dial(t, server)
	response := c.roundTrip(t, "GET / HTTP/1.1\r\nHost: \"unbalanced\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodGet)
	if response.Status != httpwire.StatusBadRequest {
		t.Errorf("status = %v, want 400", response.Status)
	}
	if response.Headers.Value("Connection") != "close" {
		t.Errorf("Connection = %q, want close", response.Headers.Value("Connection"))
	}
	c.expectClosed(t)
}

func TestHTTP10WithoutHostIsServed(t *testing.T) {
	server := startServer(t, nil)
	c := dial(t, server)
	response := c.roundTrip(t, "GET /old HTTP/1.0\r\n\r\n", httpwire.MethodGet)
	if response.Status != httpwire.StatusOK || response.Protocol != httpwire.HTTP10 {
		t.Errorf("response = %v %v, want HTTP/1.0 200", response.Protocol, response.Status)
	}
}

func TestHandlerPanicGives500(t *testing.T) {
	server := startServer(t, func(config *Config) {
		config.Handlers[httpwire.MethodGet] = func(_ context.Context, _ *httpwire.Request, response *httpwire.Response) {
			response.Headers.Set("X-Partial", "1")
			panic("boom")
		}
	})
	c := dial(t, server)
	response := c.roundTrip(t, "GET / HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodGet)
	if response.Status != httpwire.StatusInternalServerError {
		t.Errorf("status = %v, want 500", response.Status)
	}
	if response.Headers.Has("X-Partial") {
		t.Error("headers from the panicking handler leaked into the response")
	}
	again := c.roundTrip(t, "GET / HTTP/1.1\r\nHost: h\r\n\r\n", httpwire.MethodGet)
	if again.Status != httpwire.StatusInternalServerError {
		t.Errorf("second status = %v, connection should survive a handler panic", again.Status)
	}
}

func TestIdleConnectionTimesOut(t *testing.T) {
	server := startServer(t, func(config *Config) { config.ReadTimeout = 100 * time.Millisecond })
	c := dial(t, server)
	c.expectClosed(t)
}

func TestServeClosesConnectionsOnCancel(t *testing.T) {
	pool := executor.New(executor.Config{Name: "connections", Workers: 2, Logger: discardLogger()})
	t.Cleanup(pool.Drain)
	server := New(Config{
		Address:    "127.0.0.1:0",
		Handlers:   map[httpwire.Method]Handler{httpwire.MethodGet: echoPath},
		Pool:       pool,
		Logger:     discardLogger(),
		ServerName: "sensor-test/1.0",
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second)

	c := dial(t, server)
	c.roundTrip(t, "GET / HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodGet)

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return"); err != nil {
		t.Errorf("Serve = %v, want nil", err)
	}
	c.expectClosed(t)
}

func TestServeReportsListenError(t *testing.T) {
	pool := executor.New(executor.Config{Workers: 1, Logger: discardLogger()})
	t.Cleanup(pool.Drain)
	server := New(Config{
		Address:    "256.0.0.1:0",
		Pool:       pool,
		Logger:     discardLogger(),
		ServerName: "sensor-test/1.0",
	})
	if err := server.Serve(context.Background()); err == nil {
		t.Error("Serve on an invalid address returned nil")
	}
}

func TestLooksLikeTLS(t *testing.T) {
	tests := []struct {
		first byte
		want  bool
	}{
		{0x16, true},
		{0x80, true},
		{0xff, true},
		{'G', false},
		{'P', false},
		{0x15, false},
	}
	for _, test := range tests {
		if got := looksLikeTLS(test.first); got != test.want {
			t.Errorf("looksLikeTLS(%#x) = %v, want %v", test.first, got, test.want)
		}
	}
}

// selfSigned returns a server config and a client config trusting it.
func selfSigned(t *testing.T) (*tls.Config, *tls.Config) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	certificate, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing certificate: %v", err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(certificate)
	serverConfig := &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key, Leaf: certificate}},
	}
	clientConfig := &tls.Config{RootCAs: roots, ServerName: "localhost"}
	return serverConfig, clientConfig
}

func TestTLSServesRequests(t *testing.T) {
	serverTLS, clientTLS := selfSigned(t)
	server := startServer(t, func(config *Config) { config.TLS = serverTLS })

	conn, err := tls.Dial("tcp", server.Addr().String(), clientTLS)
	if err != nil {
		t.Fatalf("tls dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	c := &client{conn: conn, reader: bufio.NewReader(conn)}

	for _, path := range []string{"/secure", "/again"} {
		response := c.roundTrip(t, "GET "+path+" HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodGet)
		if string(response.Body) != "path="+path {
			t.Errorf("body = %q, want path=%s", response.Body, path)
		}
	}
}

func TestTransportMismatchClosesSilently(t *testing.T) {
	serverTLS, _ := selfSigned(t)
	tests := []struct {
		name  string
		tls   *tls.Config
		first string
	}{
		{"tls hello on plaintext server", nil, "\x16\x03\x01\x00\x05hello"},
		{"plaintext on tls server", serverTLS, "GET / HTTP/1.1\r\nHost: h\r\n\r\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := startServer(t, func(config *Config) { config.TLS = test.tls })
			c := dial(t, server)
			if _, err := io.WriteString(c.conn, test.first); err != nil {
				t.Fatalf("write: %v", err)
			}
			c.expectClosed(t)
		})
	}
}

func TestMetricsCountRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	server := startServer(t, func(config *Config) { config.Metrics = metrics })
	c := dial(t, server)

	c.roundTrip(t, "GET / HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodGet)
	c.roundTrip(t, "GET / HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", httpwire.MethodGet)
	c.roundTrip(t, "PUT / HTTP/1.1\r\nHost: h\r\nContent-Length: 0\r\n\r\n", httpwire.MethodPut)
	c.expectClosed(t)

	if got := promtestutil.ToFloat64(metrics.requests.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("GET 200 count = %v, want 2", got)
	}
	if got := promtestutil.ToFloat64(metrics.requests.WithLabelValues("PUT", "501")); got != 1 {
		t.Errorf("PUT 501 count = %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.connections.WithLabelValues("http")); got != 1 {
		t.Errorf("http connections = %v, want 1", got)
	}
	testutil.RequireEventually(t, func() bool {
		return promtestutil.ToFloat64(metrics.active) == 0
	}, 5*time.Second, "active connection gauge did not return to zero")
}
