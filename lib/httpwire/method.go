// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpwire

// Method is an HTTP request method.
type Method int

const (
	// MethodUnknown is any token not in the method table. It parses so
	// the dispatcher can answer 501 instead of 400.
	MethodUnknown Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch
)

// BodyRequirement says whether a request method carries a body.
type BodyRequirement int

const (
	BodyNone BodyRequirement = iota
	BodyOptional
	BodyRequired
)

type methodProperties struct {
	name            string
	body            BodyRequirement
	responseHasBody bool
}

var methodTable = map[Method]methodProperties{
	MethodGet:     {"GET", BodyNone, true},
	MethodHead:    {"HEAD", BodyNone, false},
	MethodPost:    {"POST", BodyRequired, true},
	MethodPut:     {"PUT", BodyRequired, true},
	MethodDelete:  {"DELETE", BodyNone, true},
	MethodConnect: {"CONNECT", BodyRequired, true},
	MethodOptions: {"OPTIONS", BodyOptional, true},
	MethodTrace:   {"TRACE", BodyNone, true},
	MethodPatch:   {"PATCH", BodyRequired, true},
}

// ParseMethod maps a request-line token to a Method. Matching is case
// sensitive, as methods are.
func ParseMethod(token string) Method {
	for method, properties := range methodTable {
		if properties.name == token {
			return method
		}
	}
	return MethodUnknown
}

func (m Method) String() string {
	if properties, ok := methodTable[m]; ok {
		return properties.name
	}
	return "UNKNOWN"
}

// Body returns whether requests with this method carry a body.
// Unknown methods are treated as BodyOptional so a framed body is
// still consumed.
func (m Method) Body() BodyRequirement {
	if properties, ok := methodTable[m]; ok {
		return properties.body
	}
	return BodyOptional
}

// ResponseHasBody reports whether a response to this method carries a
// body on the wire. Only HEAD does not.
func (m Method) ResponseHasBody() bool {
	if properties, ok := methodTable[m]; ok {
		return properties.responseHasBody
	}
	return true
}

// Protocol is an HTTP protocol version.
type Protocol int

const (
	ProtocolInvalid Protocol = iota
	HTTP09
	HTTP10
	HTTP11
	HTTP20
)

var protocolNames = map[Protocol]string{
	HTTP09: "HTTP/0.9",
	HTTP10: "HTTP/1.0",
	HTTP11: "HTTP/1.1",
	HTTP20: "HTTP/2.0",
}

// ParseProtocol maps a version token such as "HTTP/1.1" to a Protocol.
func ParseProtocol(token string) (Protocol, bool) {
	for protocol, name := range protocolNames {
		if name == token {
			return protocol, true
		}
	}
	return ProtocolInvalid, false
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return "HTTP/?"
}
