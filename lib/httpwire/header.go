// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpwire

import (
	"fmt"
	"iter"
	"strings"
)

// HeaderType classifies a header by the shape of its value. It is used
// for validation and list splitting, never for routing.
type HeaderType int

const (
	HeaderServerSet HeaderType = iota - 2
	HeaderInvalid
	HeaderUnspecified
	HeaderString
	HeaderInteger
	HeaderFloat
	HeaderDate
	HeaderRange
	_
	HeaderTrue
	HeaderEmail
	HeaderETag
	HeaderDateOrETag
	HeaderParameters
	HeaderURL
	HeaderHostPort
	HeaderProtoHostPort
	HeaderDateOrSeconds
	HeaderNoCache
	HeaderIP
	HeaderCharacter
	HeaderOnOff
	HeaderContainsOtherHeaders
	HeaderStarOrFQURL
	HeaderCustom
)

var headerTypeNames = map[HeaderType]string{
	HeaderServerSet:            "ServerSet",
	HeaderInvalid:              "Invalid",
	HeaderUnspecified:          "Unspecified",
	HeaderString:               "String",
	HeaderInteger:              "Integer",
	HeaderFloat:                "Float",
	HeaderDate:                 "Date",
	HeaderRange:                "Range",
	HeaderTrue:                 "True",
	HeaderEmail:                "Email",
	HeaderETag:                 "ETag",
	HeaderDateOrETag:           "DateOrETag",
	HeaderParameters:           "Parameters",
	HeaderURL:                  "Url",
	HeaderHostPort:             "HostPort",
	HeaderProtoHostPort:        "ProtoHostPort",
	HeaderDateOrSeconds:        "DateOrSeconds",
	HeaderNoCache:              "NoCache",
	HeaderIP:                   "IP",
	HeaderCharacter:            "Character",
	HeaderOnOff:                "OnOff",
	HeaderContainsOtherHeaders: "ContainsOtherHeaders",
	HeaderStarOrFQURL:          "StarOrFQURL",
	HeaderCustom:               "CustomHeader",
}

func (t HeaderType) String() string {
	if name, ok := headerTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("HeaderType(%d)", int(t))
}

type headerProperties struct {
	kind     HeaderType
	weighted bool
	list     bool
}

// headerTable covers the request and response headers of RFC 2616,
// RFC 7230 and RFC 7231 plus common extensions. Keys are lower case.
// Every list header in the table separates items with a comma.
var headerTable = map[string]headerProperties{
	"accept":                              {HeaderString, true, true},
	"accept-charset":                      {HeaderString, true, true},
	"accept-encoding":                     {HeaderString, true, true},
	"accept-language":                     {HeaderString, true, true},
	"accept-ranges":                       {HeaderString, false, false},
	"access-control-allow-credentials":    {HeaderTrue, false, false},
	"access-control-allow-headers":        {HeaderString, false, true},
	"access-control-allow-methods":        {HeaderString, false, true},
	"access-control-allow-origin":         {HeaderStarOrFQURL, false, false},
	"access-control-expose-headers":       {HeaderString, false, true},
	"access-control-max-age":              {HeaderInteger, false, false},
	"access-control-request-headers":      {HeaderString, false, true},
	"access-control-request-method":       {HeaderString, false, false},
	"age":                                 {HeaderInteger, false, false},
	"allow":                               {HeaderString, false, true},
	"authorization":                       {HeaderString, false, false},
	"cache-control":                       {HeaderString, false, true},
	"connection":                          {HeaderString, false, true},
	"content-disposition":                 {HeaderString, false, false},
	"content-encoding":                    {HeaderString, false, true},
	"content-language":                    {HeaderString, false, true},
	"content-length":                      {HeaderInteger, false, false},
	"content-location":                    {HeaderURL, false, false},
	"content-range":                       {HeaderRange, false, true},
	"content-security-policy":             {HeaderString, false, false},
	"content-security-policy-report-only": {HeaderString, false, false},
	"content-type":                        {HeaderString, false, false},
	"cookie":                              {HeaderParameters, false, false},
	"cookie2":                             {HeaderString, false, false},
	"dnt":                                 {HeaderInteger, false, false},
	"date":                                {HeaderDate, false, false},
	"etag":                                {HeaderETag, false, false},
	"expect":                              {HeaderString, false, false},
	"expires":                             {HeaderDate, false, false},
	"forwarded":                           {HeaderString, false, false},
	"from":                                {HeaderEmail, false, false},
	"host":                                {HeaderHostPort, false, false},
	"if-match":                            {HeaderETag, false, true},
	"if-modified-since":                   {HeaderDate, false, false},
	"if-none-match":                       {HeaderETag, false, true},
	"if-range":                            {HeaderDateOrETag, false, false},
	"if-unmodified-since":                 {HeaderDate, false, false},
	"keep-alive":                          {HeaderParameters, false, true},
	"large-allocation":                    {HeaderInteger, false, false},
	"last-modified":                       {HeaderDate, false, false},
	"location":                            {HeaderURL, false, false},
	"origin":                              {HeaderProtoHostPort, false, false},
	"pragma":                              {HeaderNoCache, false, false},
	"proxy-authenticate":                  {HeaderString, false, false},
	"proxy-authorization":                 {HeaderString, false, false},
	"public-key-pins":                     {HeaderParameters, false, false},
	"public-key-pins-report-only":         {HeaderParameters, false, false},
	"range":                               {HeaderRange, false, true},
	"referer":                             {HeaderURL, false, false},
	"referrer-policy":                     {HeaderString, false, false},
	"retry-after":                         {HeaderDateOrSeconds, false, false},
	"server":                              {HeaderString, false, false},
	"set-cookie":                          {HeaderParameters, false, false},
	"set-cookie2":                         {HeaderParameters, false, false},
	"sourcemap":                           {HeaderURL, false, false},
	"strict-transport-security":           {HeaderParameters, false, false},
	"te":                                  {HeaderString, true, true},
	"tk":                                  {HeaderCharacter, false, false},
	"trailer":                             {HeaderContainsOtherHeaders, false, true},
	"transfer-encoding":                   {HeaderString, false, true},
	"upgrade-insecure-requests":           {HeaderInteger, false, false},
	"user-agent":                          {HeaderString, false, false},
	"vary":                                {HeaderString, false, true},
	"via":                                 {HeaderString, false, true},
	"www-authenticate":                    {HeaderString, false, false},
	"warning":                             {HeaderString, false, false},
	"x-content-type-options":              {HeaderString, false, false},
	"x-dns-prefetch-control":              {HeaderOnOff, false, false},
	"x-forwarded-for":                     {HeaderIP, false, true},
	"x-forwarded-host":                    {HeaderString, false, false},
	"x-forwarded-proto":                   {HeaderString, false, false},
	"x-frame-options":                     {HeaderString, false, false},
	"x-xss-protection":                    {HeaderString, false, false},
}

// LookupHeaderType returns the type of a header name, matched case
// insensitively. Names outside the table are HeaderCustom.
func LookupHeaderType(name string) HeaderType {
	if properties, ok := headerTable[strings.ToLower(name)]; ok {
		return properties.kind
	}
	return HeaderCustom
}

// IsListHeader reports whether name may carry a comma-separated list,
// so repeated occurrences can be joined.
func IsListHeader(name string) bool {
	return headerTable[strings.ToLower(name)].list
}

// IsWeightedHeader reports whether list items of name may carry a
// "q=" weight.
func IsWeightedHeader(name string) bool {
	return headerTable[strings.ToLower(name)].weighted
}

// Header is one name/value line.
type Header struct {
	Name  string
	Value string
	Type  HeaderType
}

// ParseHeader parses one unfolded "Name: value" line. Spaces inside
// the name are dropped; surrounding whitespace of the value is
// trimmed.
func ParseHeader(line string) (Header, error) {
	rawName, rawValue, found := strings.Cut(line, ":")
	if !found {
		return Header{}, fmt.Errorf("%w: header %q has no ':'", ErrBadRequest, line)
	}
	name := strings.ReplaceAll(rawName, " ", "")
	if name == "" {
		return Header{}, fmt.Errorf("%w: header %q has an empty name", ErrBadRequest, line)
	}
	if strings.ContainsAny(name, "\t\"(),/;<=>?@[\\]{}") {
		return Header{}, fmt.Errorf("%w: invalid character in header name %q", ErrBadRequest, name)
	}
	value := strings.Trim(rawValue, " \t")
	if strings.Count(value, `"`)%2 != 0 {
		return Header{}, fmt.Errorf("%w: header %s is improperly quoted", ErrBadRequest, name)
	}
	return Header{Name: name, Value: value, Type: LookupHeaderType(name)}, nil
}

// List splits a list header's value on commas and trims each item.
func (h Header) List() []string {
	return SplitList(h.Value)
}

// SplitList splits a comma-separated header value and trims spaces
// around each item.
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	items := strings.Split(value, ",")
	for index, item := range items {
		items[index] = strings.Trim(item, " \t")
	}
	return items
}

// CompressLWS collapses every run of whitespace in line to its first
// character and drops one trailing carriage return.
func CompressLWS(line string) string {
	var builder strings.Builder
	builder.Grow(len(line))
	previousSpace := false
	for index := 0; index < len(line); index++ {
		c := line[index]
		space := c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f'
		if space && previousSpace {
			continue
		}
		builder.WriteByte(c)
		previousSpace = space
	}
	return strings.TrimSuffix(builder.String(), "\r")
}

// Headers is an ordered header set with case-insensitive names.
type Headers struct {
	entries []Header
}

func (h *Headers) find(name string) int {
	for index := range h.entries {
		if strings.EqualFold(h.entries[index].Name, name) {
			return index
		}
	}
	return -1
}

// Add appends a parsed header. A repeated list header is joined onto
// the existing value with ", "; any other repeat is an error.
func (h *Headers) Add(header Header) error {
	index := h.find(header.Name)
	if index < 0 {
		h.entries = append(h.entries, header)
		return nil
	}
	if !IsListHeader(header.Name) {
		return fmt.Errorf("%w: duplicate header %s", ErrBadRequest, header.Name)
	}
	existing := &h.entries[index]
	switch {
	case existing.Value == "":
		existing.Value = header.Value
	case header.Value != "":
		existing.Value += ", " + header.Value
	}
	return nil
}

// Set stores a server-generated header, replacing any header of the
// same name in place.
func (h *Headers) Set(name, value string) {
	header := Header{Name: name, Value: value, Type: HeaderServerSet}
	if index := h.find(name); index >= 0 {
		h.entries[index] = header
		return
	}
	h.entries = append(h.entries, header)
}

// Get returns the value of the named header.
func (h *Headers) Get(name string) (string, bool) {
	if index := h.find(name); index >= 0 {
		return h.entries[index].Value, true
	}
	return "", false
}

// Value returns the value of the named header, or "" when absent.
func (h *Headers) Value(name string) string {
	value, _ := h.Get(name)
	return value
}

// Has reports whether the named header is present.
func (h *Headers) Has(name string) bool {
	return h.find(name) >= 0
}

// Del removes the named header.
func (h *Headers) Del(name string) {
	if index := h.find(name); index >= 0 {
		h.entries = append(h.entries[:index], h.entries[index+1:]...)
	}
}

// Len returns the number of distinct headers.
func (h *Headers) Len() int {
	return len(h.entries)
}

// All yields the headers in insertion order.
func (h *Headers) All() iter.Seq[Header] {
	return func(yield func(Header) bool) {
		for _, header := range h.entries {
			if !yield(header) {
				return
			}
		}
	}
}

// Contains reports whether the named list header holds token, compared
// case insensitively.
func (h *Headers) Contains(name, token string) bool {
	for _, item := range SplitList(h.Value(name)) {
		if strings.EqualFold(item, token) {
			return true
		}
	}
	return false
}
