// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/sensor-server/lib/httpwire"
)

// Negotiate picks the counter format from an Accept header value.
// Items are tried in the order the client listed them and q weights
// are ignored. An absent header or one naming no supported format
// yields MimeTextHTML.
func Negotiate(accept string) httpwire.MimeType {
	for _, item := range httpwire.SplitList(accept) {
		mime, ok := httpwire.ParseMimeType(item)
		if !ok {
			continue
		}
		switch mime {
		case httpwire.MimeJSON, httpwire.MimePrometheus, httpwire.MimeCBOR:
			return mime
		}
	}
	return httpwire.MimeTextHTML
}

// Content codings the server can apply.
const (
	codingIdentity = ""
	codingGzip     = "gzip"
	codingZstd     = "zstd"
)

// compressionThreshold is the smallest body worth compressing.
const compressionThreshold = 1024

// chooseCoding picks a content coding from an Accept-Encoding value.
// zstd is preferred over gzip; codings with q=0 are refused.
func chooseCoding(acceptEncoding string) string {
	var gzipOK, zstdOK bool
	for _, item := range httpwire.SplitList(acceptEncoding) {
		name, parameters, _ := strings.Cut(item, ";")
		if strings.ReplaceAll(strings.ToLower(parameters), " ", "") == "q=0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case codingZstd:
			zstdOK = true
		case codingGzip, "x-gzip":
			gzipOK = true
		}
	}
	switch {
	case zstdOK:
		return codingZstd
	case gzipOK:
		return codingGzip
	}
	return codingIdentity
}

// zstdEncoder returns the encoder shared by all requests, built on
// first use. EncodeAll is safe for concurrent use.
var zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
})

func compress(body []byte, coding string) ([]byte, error) {
	switch coding {
	case codingZstd:
		encoder, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return encoder.EncodeAll(body, make([]byte, 0, len(body)/2)), nil
	case codingGzip:
		var buffer bytes.Buffer
		writer, err := gzip.NewWriterLevel(&buffer, gzip.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := writer.Write(body); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return buffer.Bytes(), nil
	}
	return body, nil
}

// setBody stores body on response, compressed with the coding the
// request accepts when the body is large enough.
func setBody(request *httpwire.Request, response *httpwire.Response, mime httpwire.MimeType, body []byte) error {
	coding := codingIdentity
	if len(body) >= compressionThreshold {
		coding = chooseCoding(request.Headers.Value("Accept-Encoding"))
	}
	encoded, err := compress(body, coding)
	if err != nil {
		return err
	}
	response.SetBody(mime, encoded, httpwire.StatusOK)
	if coding != codingIdentity {
		response.Headers.Set("Content-Encoding", coding)
	}
	response.Headers.Set("Vary", "Accept, Accept-Encoding")
	return nil
}
