// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpwire

import "strings"

// MimeType is a response media type the server produces.
type MimeType int

const (
	MimeCatchAll MimeType = iota
	MimeTextHTML
	MimeTextXML
	MimeTextPlain
	MimePrometheus
	MimeJSON
	MimeIcon
	MimeCBOR
)

var mimeNames = map[MimeType]string{
	MimeCatchAll:   "*/*",
	MimeTextHTML:   "text/html",
	MimeTextXML:    "text/xml",
	MimeTextPlain:  "text/plain",
	MimePrometheus: "text/plain; version=0.0.4",
	MimeJSON:       "application/json",
	MimeIcon:       "image/x-icon",
	MimeCBOR:       "application/cbor",
}

func (m MimeType) String() string {
	return mimeNames[m]
}

// IsText reports whether a Content-Type of m gets a charset parameter.
func (m MimeType) IsText() bool {
	switch m {
	case MimeTextHTML, MimeTextXML, MimeTextPlain, MimePrometheus, MimeJSON:
		return true
	}
	return false
}

// ParseMimeType matches one Accept list item against the known types.
// Whitespace is ignored, case is folded and a trailing "q=" weight is
// dropped, so "text/plain;version=0.0.4;q=0.9" matches MimePrometheus.
// A bare "text/plain" matches MimeTextPlain, not the Prometheus type.
func ParseMimeType(item string) (MimeType, bool) {
	normalized := normalizeMime(item)
	for mime, name := range mimeNames {
		if normalizeMime(name) == normalized {
			return mime, true
		}
	}
	return MimeCatchAll, false
}

func normalizeMime(item string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(item) {
		if r != ' ' && r != '\t' {
			builder.WriteRune(r)
		}
	}
	parameters := strings.Split(builder.String(), ";")
	kept := parameters[:1]
	for _, parameter := range parameters[1:] {
		if parameter == "" || strings.HasPrefix(parameter, "q=") {
			continue
		}
		kept = append(kept, parameter)
	}
	return strings.Join(kept, ";")
}
