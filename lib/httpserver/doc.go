// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpserver runs the sensor server's connection engine: a TCP
// listener whose connections are each served by one executor job for
// their keep-alive lifetime.
//
// A connection's first byte decides its transport. A TLS record or
// SSLv2 hello on a plaintext server, or plaintext on a TLS server,
// closes the connection without a response. Requests are parsed with
// [httpwire.ReadRequest] and dispatched by method; malformed requests
// get a 400 (or 413/414/431) naming the problem, and the connection is
// closed. Every response carries Server, Date and Connection headers.
// Keep-alive is honoured only when the client asks for it and the
// per-connection request limit has not been reached.
package httpserver
