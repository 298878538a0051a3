// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpwire

import (
	"bufio"
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		line     string
		name     string
		value    string
		kind     HeaderType
		wantFail bool
	}{
		{line: "Content-Encoding text/html", wantFail: true},
		{line: "       Content-Encoding   :    text/html      ", name: "Content-Encoding", value: "text/html", kind: HeaderString},
		{line: " H o s t : my.host.com", name: "Host", value: "my.host.com", kind: HeaderHostPort},
		{line: "MyUnknownHeaderType : value", name: "MyUnknownHeaderType", value: "value", kind: HeaderCustom},
		{line: ` Host : "my.host.com`, wantFail: true},
		{line: `X-Quoted: "a" "b"`, name: "X-Quoted", value: `"a" "b"`, kind: HeaderCustom},
		{line: "content-length: 12", name: "content-length", value: "12", kind: HeaderInteger},
		{line: ": no name", wantFail: true},
		{line: "Bad(Name): x", wantFail: true},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			header, err := ParseHeader(test.line)
			if test.wantFail {
				if !errors.Is(err, ErrBadRequest) {
					t.Errorf("ParseHeader error = %v, want ErrBadRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHeader: %v", err)
			}
			if header.Name != test.name || header.Value != test.value || header.Type != test.kind {
				t.Errorf("ParseHeader = {%q %q %v}, want {%q %q %v}",
					header.Name, header.Value, header.Type, test.name, test.value, test.kind)
			}
		})
	}
}

func TestCompressLWS(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a  b\t\t c\r", "a b\tc"},
		{"   lead", " lead"},
		{"plain", "plain"},
		{"", ""},
		{"trail \r", "trail "},
	}
	for _, test := range tests {
		if got := CompressLWS(test.in); got != test.want {
			t.Errorf("CompressLWS(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestHeadersListJoinAndCase(t *testing.T) {
	var headers Headers
	for _, line := range []string{"Accept: text/html", "ACCEPT: application/json", "X-One: 1"} {
		header, err := ParseHeader(line)
		if err != nil {
			t.Fatalf("ParseHeader(%q): %v", line, err)
		}
		if err := headers.Add(header); err != nil {
			t.Fatalf("Add(%q): %v", line, err)
		}
	}
	if got := headers.Value("accept"); got != "text/html, application/json" {
		t.Errorf("joined Accept = %q", got)
	}
	if err := headers.Add(Header{Name: "x-one", Value: "2"}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("duplicate custom header error = %v, want ErrBadRequest", err)
	}
	headers.Set("X-ONE", "3")
	if headers.Len() != 2 || headers.Value("x-one") != "3" {
		t.Errorf("Set did not replace in place: %d headers, x-one=%q", headers.Len(), headers.Value("x-one"))
	}
	headers.Del("Accept")
	if headers.Has("accept") {
		t.Error("Del left Accept behind")
	}
}

func TestMethodTable(t *testing.T) {
	if ParseMethod("GET") != MethodGet || ParseMethod("get") != MethodUnknown {
		t.Error("method tokens are case sensitive")
	}
	if MethodHead.ResponseHasBody() || !MethodGet.ResponseHasBody() {
		t.Error("only HEAD responses lack a body")
	}
	requirements := map[Method]BodyRequirement{
		MethodGet:     BodyNone,
		MethodPost:    BodyRequired,
		MethodOptions: BodyOptional,
		MethodPatch:   BodyRequired,
		MethodTrace:   BodyNone,
	}
	for method, want := range requirements {
		if got := method.Body(); got != want {
			t.Errorf("%v.Body() = %v, want %v", method, got, want)
		}
	}
}

func TestStatusText(t *testing.T) {
	if got := StatusNotFound.String(); got != "404 Not Found" {
		t.Errorf("StatusNotFound = %q", got)
	}
	if got := Status(299).Reason(); got != "Unknown" {
		t.Errorf("Status(299).Reason() = %q, want Unknown", got)
	}
}

func TestParseMimeType(t *testing.T) {
	tests := []struct {
		item string
		want MimeType
		ok   bool
	}{
		{"application/json", MimeJSON, true},
		{" Application/JSON ;q=0.8", MimeJSON, true},
		{"text/plain;version=0.0.4", MimePrometheus, true},
		{"text/plain; version=0.0.4; q=0.2", MimePrometheus, true},
		{"text/plain", MimeTextPlain, true},
		{"application/cbor", MimeCBOR, true},
		{"*/*", MimeCatchAll, true},
		{"image/png", MimeCatchAll, false},
	}
	for _, test := range tests {
		got, ok := ParseMimeType(test.item)
		if got != test.want || ok != test.ok {
			t.Errorf("ParseMimeType(%q) = (%v, %v), want (%v, %v)", test.item, got, ok, test.want, test.ok)
		}
	}
}

func TestResponseWriteAndRead(t *testing.T) {
	response := NewResponse(HTTP11)
	response.SetBody(MimeJSON, []byte(`{"a":1}`), StatusOK)
	response.Headers.Set("Server", "test/1")
	response.Headers.Set("Date", FormatDate(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)))

	var buffer bytes.Buffer
	if err := response.Write(&buffer); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: application/json; charset=UTF-8\r\n" +
		"Content-Length: 7\r\n" +
		"Server: test/1\r\n" +
		"Date: Wed, 04 Mar 2026 05:06:07 GMT\r\n" +
		"\r\n" +
		`{"a":1}`
	if buffer.String() != want {
		t.Errorf("Write =\n%q\nwant\n%q", buffer.String(), want)
	}

	parsed, err := ReadResponse(bufio.NewReader(strings.NewReader("HTTP/1.1 100 Continue\r\n\r\n"+want)), MethodGet)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if parsed.Status != StatusOK || string(parsed.Body) != `{"a":1}` {
		t.Errorf("ReadResponse = %v %q", parsed.Status, parsed.Body)
	}
	names := slices.Collect(func(yield func(string) bool) {
		for header := range parsed.Headers.All() {
			if !yield(header.Name) {
				return
			}
		}
	})
	if !slices.Equal(names, []string{"Content-Type", "Content-Length", "Server", "Date"}) {
		t.Errorf("header order = %v", names)
	}
}

func TestResponseIconHasNoCharset(t *testing.T) {
	response := NewResponse(ProtocolInvalid)
	response.SetBody(MimeIcon, []byte{0, 0, 1, 0}, StatusOK)
	if got := response.Headers.Value("Content-Type"); got != "image/x-icon" {
		t.Errorf("Content-Type = %q, want image/x-icon", got)
	}
	if response.Protocol != HTTP11 {
		t.Errorf("invalid protocol fell back to %v, want HTTP/1.1", response.Protocol)
	}
}

func TestSetText(t *testing.T) {
	response := NewResponse(HTTP10)
	response.SetText(StatusBadRequest, "seconds must be between 1 and 30")
	if got := string(response.Body); got != "400 Bad Request. seconds must be between 1 and 30" {
		t.Errorf("body = %q", got)
	}
}
