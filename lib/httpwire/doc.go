// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpwire reads and writes HTTP/1.x messages on byte streams.
// It owns no sockets: [ReadRequest] consumes a *bufio.Reader and
// [Response.Write] produces bytes on any io.Writer, so the same code
// serves plaintext and TLS connections and is tested with in-memory
// buffers.
//
// Parsing is strict where ambiguity would let a request be read two
// ways. The request line must hold exactly three tokens. A body is
// framed by Content-Length or by chunked Transfer-Encoding, never both.
// A header value with an odd number of double quotes is rejected.
// Folded header lines (continuations starting with a space or tab)
// are joined after their whitespace runs are collapsed.
//
// Errors caused by the peer's bytes wrap [ErrBadRequest] or
// [ErrPayloadTooLarge]; [StatusForError] maps them to a response
// status. Transport errors (EOF, timeouts) are returned unwrapped so
// the caller can close the connection quietly.
package httpwire
