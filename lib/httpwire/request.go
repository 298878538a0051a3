// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpwire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bureau-foundation/sensor-server/lib/uri"
)

const (
	// MaxLineLength bounds the request line and every header line.
	MaxLineLength = 8 << 10

	// MaxHeaderCount bounds the number of header and trailer lines.
	MaxHeaderCount = 128

	// MaxBodySize bounds a request body, framed either way.
	MaxBodySize = 1 << 20

	// maxLeadingBlankLines is how many empty lines before a request
	// line are skipped, for clients that send a stray CRLF after a
	// body.
	maxLeadingBlankLines = 4
)

var (
	// ErrBadRequest is wrapped by every error caused by malformed
	// request bytes.
	ErrBadRequest = errors.New("bad request")

	// ErrPayloadTooLarge is wrapped when a body exceeds MaxBodySize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrURITooLong is wrapped when the request line exceeds
	// MaxLineLength.
	ErrURITooLong = errors.New("request line too long")

	// ErrHeaderFieldsTooLarge is wrapped when a header line or the
	// header count exceeds its bound.
	ErrHeaderFieldsTooLarge = errors.New("request header fields too large")

	errLineTooLong = errors.New("line too long")
)

// StatusForError maps a ReadRequest error to the response status that
// reports it. ok is false for transport errors, which get no response.
func StatusForError(err error) (status Status, ok bool) {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return StatusPayloadTooLarge, true
	case errors.Is(err, ErrURITooLong):
		return StatusRequestURITooLong, true
	case errors.Is(err, ErrHeaderFieldsTooLarge):
		return StatusRequestHeaderFieldsTooLarge, true
	case errors.Is(err, ErrBadRequest):
		return StatusBadRequest, true
	}
	return 0, false
}

// Request is a parsed HTTP request.
type Request struct {
	Method Method

	// MethodToken is the method as sent, kept for unknown methods.
	MethodToken string

	// Target is the raw request target; URL is its parsed form.
	Target string
	URL    *uri.URL

	Protocol Protocol
	Headers  Headers
	Body     []byte
}

// KeepAlive reports whether the client asked for the connection to
// stay open.
func (r *Request) KeepAlive() bool {
	return r.Headers.Contains("Connection", "keep-alive")
}

// ReadRequest reads one request from r. If the client sent
// "Expect: 100-continue", an interim "100 Continue" response is
// written to w before the body is read; w may be nil when no interim
// response can be sent.
//
// On error the returned Request is nil if the request line was not
// understood, and otherwise carries at least Method and Protocol so
// the error response can use the client's protocol version. A
// connection closed before any byte of a request yields io.EOF. A
// connection closed partway through a request is a bad request: the
// error wraps both ErrBadRequest and io.ErrUnexpectedEOF.
func ReadRequest(r *bufio.Reader, w io.Writer) (*Request, error) {
	request, err := readRequest(r, w)
	if errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, ErrBadRequest) {
		err = fmt.Errorf("%w: request truncated: %w", ErrBadRequest, err)
	}
	return request, err
}

func readRequest(r *bufio.Reader, w io.Writer) (*Request, error) {
	line, err := readRequestLine(r)
	if err != nil {
		return nil, err
	}

	tokens := strings.Split(line, " ")
	if len(tokens) != 3 {
		return nil, fmt.Errorf("%w: request line %q does not have exactly 3 space separated tokens", ErrBadRequest, line)
	}
	for index, name := range []string{"method", "target", "protocol"} {
		if tokens[index] == "" {
			return nil, fmt.Errorf("%w: request line has an empty %s", ErrBadRequest, name)
		}
	}
	protocol, ok := ParseProtocol(tokens[2])
	if !ok {
		return nil, fmt.Errorf("%w: unsupported protocol %q", ErrBadRequest, tokens[2])
	}

	request := &Request{
		Method:      ParseMethod(tokens[0]),
		MethodToken: tokens[0],
		Target:      tokens[1],
		Protocol:    protocol,
	}
	request.URL, err = uri.Parse(tokens[1])
	if err != nil {
		return request, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	if err := readHeaders(r, &request.Headers); err != nil {
		return request, err
	}
	if err := readBody(r, w, request); err != nil {
		return request, err
	}
	return request, nil
}

func readRequestLine(r *bufio.Reader) (string, error) {
	for range maxLeadingBlankLines + 1 {
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return "", fmt.Errorf("%w: over %d bytes", ErrURITooLong, MaxLineLength)
			}
			return "", err
		}
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%w: no request line", ErrBadRequest)
}

// readLine returns the next line without its '\n'. EOF before the
// first byte is io.EOF; EOF inside a line is io.ErrUnexpectedEOF.
func readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineLength+1 {
			return "", errLineTooLong
		}
		switch {
		case err == nil:
			return string(line[:len(line)-1]), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return "", io.EOF
			}
			return "", io.ErrUnexpectedEOF
		default:
			return "", err
		}
	}
}

// readHeaderLine reads one logical header line, replacing each fold
// with a single space. It returns "" at the blank line that ends the
// block.
func readHeaderLine(r *bufio.Reader) (string, error) {
	line, err := readLine(r)
	if err != nil {
		return "", headerReadError(err)
	}
	line = CompressLWS(line)
	if line == "" {
		return "", nil
	}
	for {
		next, err := r.Peek(1)
		if err != nil || (next[0] != ' ' && next[0] != '\t') {
			return line, nil
		}
		continuation, err := readLine(r)
		if err != nil {
			return "", headerReadError(err)
		}
		line += " " + strings.TrimLeft(CompressLWS(continuation), " \t")
		if len(line) > MaxLineLength {
			return "", fmt.Errorf("%w: folded header over %d bytes", ErrHeaderFieldsTooLarge, MaxLineLength)
		}
	}
}

func headerReadError(err error) error {
	if errors.Is(err, errLineTooLong) {
		return fmt.Errorf("%w: header line over %d bytes", ErrHeaderFieldsTooLarge, MaxLineLength)
	}
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// readHeaders reads header lines into headers until the blank line.
func readHeaders(r *bufio.Reader, headers *Headers) error {
	for count := 0; ; count++ {
		line, err := readHeaderLine(r)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		if count >= MaxHeaderCount {
			return fmt.Errorf("%w: more than %d headers", ErrHeaderFieldsTooLarge, MaxHeaderCount)
		}
		header, err := ParseHeader(line)
		if err != nil {
			return err
		}
		if err := headers.Add(header); err != nil {
			return err
		}
	}
}

func readBody(r *bufio.Reader, w io.Writer, request *Request) error {
	headers := &request.Headers
	lengthValue, hasLength := headers.Get("Content-Length")
	encoding, hasEncoding := headers.Get("Transfer-Encoding")
	chunked := false
	if hasEncoding {
		codings := SplitList(encoding)
		if len(codings) == 0 || !strings.EqualFold(codings[len(codings)-1], "chunked") {
			return fmt.Errorf("%w: unsupported Transfer-Encoding %q", ErrBadRequest, encoding)
		}
		chunked = true
	}

	switch {
	case hasLength && chunked:
		return fmt.Errorf("%w: both Content-Length and chunked Transfer-Encoding", ErrBadRequest)
	case !hasLength && !chunked:
		if request.Method.Body() == BodyRequired {
			return fmt.Errorf("%w: %s requires a body but neither Content-Length nor Transfer-Encoding was sent",
				ErrBadRequest, request.MethodToken)
		}
		return nil
	}

	var length uint64
	if hasLength {
		var err error
		length, err = strconv.ParseUint(lengthValue, 10, 63)
		if err != nil {
			return fmt.Errorf("%w: invalid Content-Length %q", ErrBadRequest, lengthValue)
		}
		if length > MaxBodySize {
			return fmt.Errorf("%w: Content-Length %d over %d", ErrPayloadTooLarge, length, MaxBodySize)
		}
		if length == 0 {
			return nil
		}
	}

	if expect, ok := headers.Get("Expect"); ok {
		if !strings.EqualFold(expect, "100-continue") {
			return fmt.Errorf("%w: unsupported Expect %q", ErrBadRequest, expect)
		}
		if w != nil {
			if err := WriteContinue(w); err != nil {
				return err
			}
		}
	}

	if !chunked {
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return unexpected(err)
		}
		request.Body = body
		return nil
	}

	body, err := ReadChunked(r, MaxBodySize)
	if err != nil {
		return err
	}
	request.Body = body
	return readTrailers(r, headers)
}

// readTrailers reads the trailer block after the last chunk. The
// number of trailer fields must match the Trailer header's list.
func readTrailers(r *bufio.Reader, headers *Headers) error {
	declared := len(SplitList(headers.Value("Trailer")))
	received := 0
	for {
		line, err := readHeaderLine(r)
		if err != nil {
			return err
		}
		if line == "" {
			break
		}
		if received >= MaxHeaderCount {
			return fmt.Errorf("%w: more than %d trailers", ErrHeaderFieldsTooLarge, MaxHeaderCount)
		}
		header, err := ParseHeader(line)
		if err != nil {
			return err
		}
		if err := headers.Add(header); err != nil {
			return err
		}
		received++
	}
	if received != declared {
		return fmt.Errorf("%w: %d trailer fields received, Trailer header declares %d", ErrBadRequest, received, declared)
	}
	return nil
}

// ReadChunked decodes a chunked body of at most limit bytes. Chunk
// extensions are ignored. It stops after the last-chunk line, leaving
// any trailer fields and the final blank line in r.
func ReadChunked(r *bufio.Reader, limit int) ([]byte, error) {
	var body bytes.Buffer
	for {
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return nil, fmt.Errorf("%w: chunk size line too long", ErrBadRequest)
			}
			return nil, unexpected(err)
		}
		sizeText, _, _ := strings.Cut(line, ";")
		sizeText = strings.Trim(sizeText, " \t\r")
		if sizeText == "" {
			return nil, fmt.Errorf("%w: empty chunk size", ErrBadRequest)
		}
		size, err := strconv.ParseUint(sizeText, 16, 63)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid chunk size %q", ErrBadRequest, sizeText)
		}
		if size == 0 {
			return body.Bytes(), nil
		}
		if uint64(body.Len())+size > uint64(limit) {
			return nil, fmt.Errorf("%w: chunked body over %d bytes", ErrPayloadTooLarge, limit)
		}
		if _, err := io.CopyN(&body, r, int64(size)); err != nil {
			return nil, unexpected(err)
		}
		terminator, err := readLine(r)
		if err != nil {
			return nil, unexpected(err)
		}
		if strings.TrimSuffix(terminator, "\r") != "" {
			return nil, fmt.Errorf("%w: chunk data not followed by CRLF", ErrBadRequest)
		}
	}
}

// unexpected converts EOF in the middle of a message into
// io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
