// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package uri

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by every parse error.
var ErrMalformed = errors.New("uri: malformed")

// Pair is one decoded key=value item of a query string.
type Pair struct {
	Key   string
	Value string
}

// URL is a parsed request target. The Has* flags distinguish an absent
// component from an empty one.
type URL struct {
	Scheme   string
	User     string
	Password string

	// Host is the bare host name or address. IPv6 literals are stored
	// without their brackets.
	Host string
	Port uint16

	Path     string
	Query    []Pair
	Fragment string

	HasScheme   bool
	HasUser     bool
	HasPassword bool
	HasHost     bool
	HasPort     bool
	HasQuery    bool
	HasFragment bool

	// PathIsStar is set for the asterisk form "*".
	PathIsStar bool

	// AuthorityForm is set for a bare "host[:port]" target.
	AuthorityForm bool
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Parse parses target. An empty target yields the path "/".
func Parse(target string) (*URL, error) {
	url := &URL{}
	if target == "" {
		url.Path = "/"
		return url, nil
	}
	if target == "*" {
		url.Path = target
		url.PathIsStar = true
		return url, nil
	}
	for index := 0; index < len(target); index++ {
		if c := target[index]; c <= ' ' || c == 0x7f {
			return nil, malformed("control or space character at offset %d", index)
		}
	}

	if isAuthorityForm(target) {
		url.AuthorityForm = true
		if err := url.parseHostPort(target); err != nil {
			return nil, err
		}
		return url, nil
	}

	questionMark := strings.IndexByte(target, '?')
	hash := strings.IndexByte(target, '#')
	// A '?' inside the fragment starts no query.
	if hash >= 0 && questionMark > hash {
		questionMark = -1
	}
	componentEnd := firstOf(len(target), questionMark, hash)

	pathStart := 0
	if target[0] != '/' {
		colon := strings.IndexByte(target, ':')
		if colon <= 0 {
			return nil, malformed("target %q is neither a path nor has a scheme", target)
		}
		scheme := target[:colon]
		if !validScheme(scheme) {
			return nil, malformed("scheme %q contains invalid characters", scheme)
		}
		url.Scheme = scheme
		url.HasScheme = true

		if !strings.HasPrefix(target[colon+1:], "//") {
			return nil, malformed("no \"//\" after scheme %q", scheme)
		}
		authorityStart := colon + 3
		authorityEnd := componentEnd
		if slash := strings.IndexByte(target[authorityStart:componentEnd], '/'); slash >= 0 {
			authorityEnd = authorityStart + slash
		}
		if err := url.parseAuthority(target[authorityStart:authorityEnd]); err != nil {
			return nil, err
		}
		pathStart = authorityEnd
	}
	url.Path = target[pathStart:componentEnd]
	if strings.IndexByte(url.Path, '%') >= 0 {
		return nil, malformed("path %q contains percent escapes", url.Path)
	}

	if questionMark >= 0 {
		queryEnd := len(target)
		if hash >= 0 {
			queryEnd = hash
		}
		query, err := parseQuery(target[questionMark+1 : queryEnd])
		if err != nil {
			return nil, err
		}
		url.Query = query
		url.HasQuery = true
	}
	if hash >= 0 {
		url.Fragment = target[hash+1:]
		url.HasFragment = true
	}
	return url, nil
}

// isAuthorityForm reports whether target is a bare host with an
// optional numeric port: no path, query, fragment or userinfo, and
// anything after the last colon is a port number.
func isAuthorityForm(target string) bool {
	if target[0] == '/' || strings.ContainsAny(target, "/?#@") {
		return false
	}
	if strings.HasPrefix(target, "[") {
		closing := strings.IndexByte(target, ']')
		if closing < 0 {
			return false
		}
		rest := target[closing+1:]
		return rest == "" || (rest[0] == ':' && allDigits(rest[1:]))
	}
	colon := strings.LastIndexByte(target, ':')
	if colon < 0 {
		return true
	}
	return colon > 0 && strings.IndexByte(target[:colon], ':') < 0 && allDigits(target[colon+1:])
}

func (u *URL) parseAuthority(authority string) error {
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		if at == 0 {
			return malformed("empty userinfo before '@'")
		}
		userinfo := authority[:at]
		user := userinfo
		if colon := strings.IndexByte(userinfo, ':'); colon >= 0 {
			user = userinfo[:colon]
			password, err := PercentDecode(userinfo[colon+1:])
			if err != nil {
				return fmt.Errorf("password: %w", err)
			}
			u.Password = password
			u.HasPassword = true
		}
		if user == "" {
			return malformed("empty user name before '@'")
		}
		decoded, err := PercentDecode(user)
		if err != nil {
			return fmt.Errorf("user: %w", err)
		}
		u.User = decoded
		u.HasUser = true
		authority = authority[at+1:]
	}
	return u.parseHostPort(authority)
}

func (u *URL) parseHostPort(authority string) error {
	if authority == "" {
		return malformed("no host")
	}
	if authority[0] == '[' {
		closing := strings.IndexByte(authority, ']')
		if closing < 0 {
			return malformed("no matching ']' for IPv6 host")
		}
		if closing == 1 {
			return malformed("empty IPv6 host")
		}
		u.Host = authority[1:closing]
		u.HasHost = true
		authority = authority[closing+1:]
		if authority == "" {
			return nil
		}
		if authority[0] != ':' {
			return malformed("unexpected %q after IPv6 host", authority)
		}
		return u.parsePort(authority[1:])
	}
	if strings.ContainsAny(authority, "[]") {
		return malformed("unmatched bracket in host %q", authority)
	}
	colon := strings.LastIndexByte(authority, ':')
	if colon < 0 {
		u.Host = authority
		u.HasHost = true
		return nil
	}
	if colon == 0 {
		return malformed("no host before port")
	}
	u.Host = authority[:colon]
	u.HasHost = true
	return u.parsePort(authority[colon+1:])
}

// parsePort accepts an empty port, which selects the scheme default
// and leaves HasPort unset.
func (u *URL) parsePort(text string) error {
	if text == "" {
		return nil
	}
	if !allDigits(text) {
		return malformed("port %q is not a number", text)
	}
	port, err := strconv.ParseUint(text, 10, 16)
	if err != nil {
		return malformed("port %s out of range", text)
	}
	u.Port = uint16(port)
	u.HasPort = true
	return nil
}

func parseQuery(query string) ([]Pair, error) {
	if query == "" {
		return nil, malformed("empty query after '?'")
	}
	var pairs []Pair
	for item := range strings.SplitSeq(query, "&") {
		rawKey, rawValue, found := strings.Cut(item, "=")
		if !found {
			return nil, malformed("query item %q has no '='", item)
		}
		key, err := PercentDecode(rawKey)
		if err != nil {
			return nil, fmt.Errorf("query key: %w", err)
		}
		value, err := PercentDecode(rawValue)
		if err != nil {
			return nil, fmt.Errorf("query value: %w", err)
		}
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	return pairs, nil
}

// QueryValue returns the value of the first query pair named key.
func (u *URL) QueryValue(key string) (string, bool) {
	for _, pair := range u.Query {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// String re-serializes the URL with canonical percent-encoding of the
// userinfo and query.
func (u *URL) String() string {
	if u.PathIsStar {
		return "*"
	}
	var builder strings.Builder
	if u.AuthorityForm {
		u.writeHostPort(&builder)
		return builder.String()
	}
	if u.HasScheme {
		builder.WriteString(u.Scheme)
		builder.WriteByte(':')
	}
	if u.HasHost {
		builder.WriteString("//")
		if u.HasUser {
			builder.WriteString(PercentEncode(u.User))
			if u.HasPassword {
				builder.WriteByte(':')
				builder.WriteString(PercentEncode(u.Password))
			}
			builder.WriteByte('@')
		}
		u.writeHostPort(&builder)
	}
	if u.Path == "" {
		builder.WriteByte('/')
	} else {
		builder.WriteString(u.Path)
	}
	if u.HasQuery {
		builder.WriteByte('?')
		for index, pair := range u.Query {
			if index > 0 {
				builder.WriteByte('&')
			}
			builder.WriteString(PercentEncode(pair.Key))
			builder.WriteByte('=')
			builder.WriteString(PercentEncode(pair.Value))
		}
	}
	if u.HasFragment {
		builder.WriteByte('#')
		builder.WriteString(u.Fragment)
	}
	return builder.String()
}

func (u *URL) writeHostPort(builder *strings.Builder) {
	if strings.IndexByte(u.Host, ':') >= 0 {
		builder.WriteByte('[')
		builder.WriteString(u.Host)
		builder.WriteByte(']')
	} else {
		builder.WriteString(u.Host)
	}
	if u.HasPort {
		builder.WriteByte(':')
		builder.WriteString(strconv.Itoa(int(u.Port)))
	}
}

func validScheme(scheme string) bool {
	for index := 0; index < len(scheme); index++ {
		c := scheme[index]
		if !isAlphanumeric(c) && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func allDigits(text string) bool {
	if text == "" {
		return false
	}
	for index := 0; index < len(text); index++ {
		if text[index] < '0' || text[index] > '9' {
			return false
		}
	}
	return true
}

// firstOf returns the smallest non-negative index, or fallback.
func firstOf(fallback int, indexes ...int) int {
	result := fallback
	for _, index := range indexes {
		if index >= 0 && index < result {
			result = index
		}
	}
	return result
}
