// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpwire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the IMF-fixdate layout of the Date header.
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatDate formats t for a Date header.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// Response is an HTTP response under construction.
type Response struct {
	Protocol Protocol
	Status   Status
	Headers  Headers
	Body     []byte
}

// NewResponse returns an empty 200 response for protocol. An invalid
// protocol falls back to HTTP/1.1.
func NewResponse(protocol Protocol) *Response {
	if _, ok := protocolNames[protocol]; !ok {
		protocol = HTTP11
	}
	return &Response{Protocol: protocol, Status: StatusOK}
}

// SetBody sets the status, the body and its Content-Type and
// Content-Length headers. Textual types are labelled UTF-8.
func (r *Response) SetBody(mime MimeType, body []byte, status Status) {
	contentType := mime.String()
	if mime.IsText() {
		contentType += "; charset=UTF-8"
	}
	r.Headers.Set("Content-Type", contentType)
	r.Headers.Set("Content-Length", strconv.Itoa(len(body)))
	r.Body = body
	r.Status = status
}

// SetText sets a plain-text body prefixed with the status line text,
// the shape of every error response.
func (r *Response) SetText(status Status, message string) {
	text := status.String()
	if message != "" {
		text += ". " + message
	}
	r.SetBody(MimeTextPlain, []byte(text), status)
}

// Write serializes the response: status line, headers in insertion
// order, blank line and body. It issues a single Write.
func (r *Response) Write(w io.Writer) error {
	var buffer bytes.Buffer
	buffer.Grow(256 + len(r.Body))
	fmt.Fprintf(&buffer, "%s %d %s\r\n", r.Protocol, int(r.Status), r.Status.Reason())
	for header := range r.Headers.All() {
		buffer.WriteString(header.Name)
		buffer.WriteString(": ")
		buffer.WriteString(header.Value)
		buffer.WriteString("\r\n")
	}
	buffer.WriteString("\r\n")
	buffer.Write(r.Body)
	_, err := w.Write(buffer.Bytes())
	return err
}

// WriteContinue writes the interim response that answers
// "Expect: 100-continue".
func WriteContinue(w io.Writer) error {
	_, err := io.WriteString(w, "HTTP/1.1 100 Continue\r\n\r\n")
	return err
}

// ReadResponse reads a response to a request made with method. It is
// the client half of the wire format, used by probes and tests.
// Interim 1xx responses are skipped.
func ReadResponse(r *bufio.Reader, method Method) (*Response, error) {
	for {
		response, err := readResponseHead(r)
		if err != nil {
			return nil, err
		}
		if response.Status >= 100 && response.Status < 200 {
			continue
		}
		if !method.ResponseHasBody() || response.Status == StatusNoContent || response.Status == StatusNotModified {
			return response, nil
		}
		if response.Headers.Contains("Transfer-Encoding", "chunked") {
			body, err := ReadChunked(r, MaxBodySize)
			if err != nil {
				return nil, err
			}
			response.Body = body
			return response, readTrailers(r, &response.Headers)
		}
		lengthValue, ok := response.Headers.Get("Content-Length")
		if !ok {
			body, err := io.ReadAll(io.LimitReader(r, MaxBodySize))
			if err != nil {
				return nil, err
			}
			response.Body = body
			return response, nil
		}
		length, err := strconv.ParseUint(lengthValue, 10, 63)
		if err != nil || length > MaxBodySize {
			return nil, fmt.Errorf("%w: invalid Content-Length %q", ErrBadRequest, lengthValue)
		}
		response.Body = make([]byte, length)
		if _, err := io.ReadFull(r, response.Body); err != nil {
			return nil, unexpected(err)
		}
		return response, nil
	}
}

func readResponseHead(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\r")
	protocolText, rest, _ := strings.Cut(line, " ")
	codeText, _, _ := strings.Cut(rest, " ")
	protocol, ok := ParseProtocol(protocolText)
	if !ok {
		return nil, fmt.Errorf("%w: status line %q", ErrBadRequest, line)
	}
	code, err := strconv.Atoi(codeText)
	if err != nil || code < 100 || code > 999 {
		return nil, fmt.Errorf("%w: status code in %q", ErrBadRequest, line)
	}
	response := &Response{Protocol: protocol, Status: Status(code)}
	if err := readHeaders(r, &response.Headers); err != nil {
		return nil, err
	}
	return response, nil
}
