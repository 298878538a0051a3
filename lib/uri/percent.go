// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uri

import "strings"

const upperHex = "0123456789ABCDEF"

func isAlphanumeric(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isUnreserved(c byte) bool {
	return isAlphanumeric(c) || c == '-' || c == '_' || c == '.' || c == '~'
}

// PercentEncode escapes every byte outside the unreserved set
// A-Z a-z 0-9 - _ . ~ as %XX with upper-case hex digits.
func PercentEncode(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	for index := 0; index < len(s); index++ {
		c := s[index]
		if isUnreserved(c) {
			builder.WriteByte(c)
			continue
		}
		builder.WriteByte('%')
		builder.WriteByte(upperHex[c>>4])
		builder.WriteByte(upperHex[c&0x0f])
	}
	return builder.String()
}

// PercentDecode replaces every %XX escape with its byte. A '%' not
// followed by two hex digits is an error.
func PercentDecode(s string) (string, error) {
	if strings.IndexByte(s, '%') < 0 {
		return s, nil
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for index := 0; index < len(s); index++ {
		c := s[index]
		if c != '%' {
			builder.WriteByte(c)
			continue
		}
		if index+2 >= len(s) {
			return "", malformed("truncated percent escape in %q", s)
		}
		high, highOK := unhex(s[index+1])
		low, lowOK := unhex(s[index+2])
		if !highOK || !lowOK {
			return "", malformed("invalid percent escape %q", s[index:index+3])
		}
		builder.WriteByte(high<<4 | low)
		index += 2
	}
	return builder.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
