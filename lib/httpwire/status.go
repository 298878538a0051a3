// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpwire

import "strconv"

// Status is an HTTP response status code.
type Status int

const (
	StatusContinue                        Status = 100
	StatusSwitchingProtocols              Status = 101
	StatusProcessing                      Status = 102
	StatusOK                              Status = 200
	StatusCreated                         Status = 201
	StatusAccepted                        Status = 202
	StatusNonAuthoritativeInformation     Status = 203
	StatusNoContent                       Status = 204
	StatusResetContent                    Status = 205
	StatusPartialContent                  Status = 206
	StatusMultiStatus                     Status = 207
	StatusAlreadyReported                 Status = 208
	StatusIMUsed                          Status = 226
	StatusMultipleChoices                 Status = 300
	StatusMovedPermanently                Status = 301
	StatusFound                           Status = 302
	StatusSeeOther                        Status = 303
	StatusNotModified                     Status = 304
	StatusUseProxy                        Status = 305
	StatusTemporaryRedirect               Status = 307
	StatusPermanentRedirect               Status = 308
	StatusBadRequest                      Status = 400
	StatusUnauthorized                    Status = 401
	StatusPaymentRequired                 Status = 402
	StatusForbidden                       Status = 403
	StatusNotFound                        Status = 404
	StatusMethodNotAllowed                Status = 405
	StatusNotAcceptable                   Status = 406
	StatusProxyAuthenticationRequired     Status = 407
	StatusRequestTimeout                  Status = 408
	StatusConflict                        Status = 409
	StatusGone                            Status = 410
	StatusLengthRequired                  Status = 411
	StatusPreconditionFailed              Status = 412
	StatusPayloadTooLarge                 Status = 413
	StatusRequestURITooLong               Status = 414
	StatusUnsupportedMediaType            Status = 415
	StatusRequestRangeNotSatisfiable      Status = 416
	StatusExpectationFailed               Status = 417
	StatusImATeapot                       Status = 418
	StatusMisdirectedRequest              Status = 421
	StatusUnprocessableEntity             Status = 422
	StatusLocked                          Status = 423
	StatusFailedDependency                Status = 424
	StatusUpgradeRequired                 Status = 426
	StatusPreconditionRequired            Status = 428
	StatusTooManyRequests                 Status = 429
	StatusRequestHeaderFieldsTooLarge     Status = 431
	StatusConnectionClosedWithoutResponse Status = 444
	StatusUnavailableForLegalReasons      Status = 451
	StatusClientClosedRequest             Status = 499
	StatusInternalServerError             Status = 500
	StatusNotImplemented                  Status = 501
	StatusBadGateway                      Status = 502
	StatusServiceUnavailable              Status = 503
	StatusGatewayTimeout                  Status = 504
	StatusHTTPVersionNotSupported         Status = 505
	StatusVariantAlsoNegotiates           Status = 506
	StatusInsufficientStorage             Status = 507
	StatusLoopDetected                    Status = 508
	StatusNotExtended                     Status = 510
	StatusNetworkAuthenticationRequired   Status = 511
	StatusNetworkConnectTimeoutError      Status = 599
)

var reasonPhrases = map[Status]string{
	StatusContinue:                        "Continue",
	StatusSwitchingProtocols:              "Switching Protocols",
	StatusProcessing:                      "Processing",
	StatusOK:                              "OK",
	StatusCreated:                         "Created",
	StatusAccepted:                        "Accepted",
	StatusNonAuthoritativeInformation:     "Non-Authoritative Information",
	StatusNoContent:                       "No Content",
	StatusResetContent:                    "Reset Content",
	StatusPartialContent:                  "Partial Content",
	StatusMultiStatus:                     "Multi-Status",
	StatusAlreadyReported:                 "Already Reported",
	StatusIMUsed:                          "IM Used",
	StatusMultipleChoices:                 "Multiple Choices",
	StatusMovedPermanently:                "Moved Permanently",
	StatusFound:                           "Found",
	StatusSeeOther:                        "See Other",
	StatusNotModified:                     "Not Modified",
	StatusUseProxy:                        "Use Proxy",
	StatusTemporaryRedirect:               "Temporary Redirect",
	StatusPermanentRedirect:               "Permanent Redirect",
	StatusBadRequest:                      "Bad Request",
	StatusUnauthorized:                    "Unauthorized",
	StatusPaymentRequired:                 "Payment Required",
	StatusForbidden:                       "Forbidden",
	StatusNotFound:                        "Not Found",
	StatusMethodNotAllowed:                "Method Not Allowed",
	StatusNotAcceptable:                   "Not Acceptable",
	StatusProxyAuthenticationRequired:     "Proxy Authentication Required",
	StatusRequestTimeout:                  "Request Timeout",
	StatusConflict:                        "Conflict",
	StatusGone:                            "Gone",
	StatusLengthRequired:                  "Length Required",
	StatusPreconditionFailed:              "Precondition Failed",
	StatusPayloadTooLarge:                 "Payload Too Large",
	StatusRequestURITooLong:               "Request-URI Too Long",
	StatusUnsupportedMediaType:            "Unsupported Media Type",
	StatusRequestRangeNotSatisfiable:      "Request Range Not Satisfiable",
	StatusExpectationFailed:               "Expectation Failed",
	StatusImATeapot:                       "I'm a teapot",
	StatusMisdirectedRequest:              "Misdirected Request",
	StatusUnprocessableEntity:             "Unprocessable Entity",
	StatusLocked:                          "Locked",
	StatusFailedDependency:                "Failed Dependency",
	StatusUpgradeRequired:                 "Upgrade Required",
	StatusPreconditionRequired:            "Precondition Required",
	StatusTooManyRequests:                 "Too Many Requests",
	StatusRequestHeaderFieldsTooLarge:     "Request Header Fields Too Large",
	StatusConnectionClosedWithoutResponse: "Connection Closed Without Response",
	StatusUnavailableForLegalReasons:      "Unavailable For Legal Reasons",
	StatusClientClosedRequest:             "Client Closed Request",
	StatusInternalServerError:             "Internal Server Error",
	StatusNotImplemented:                  "Not Implemented",
	StatusBadGateway:                      "Bad Gateway",
	StatusServiceUnavailable:              "Service Unavailable",
	StatusGatewayTimeout:                  "Gateway Timeout",
	StatusHTTPVersionNotSupported:         "HTTP Version Not Supported",
	StatusVariantAlsoNegotiates:           "Variant Also Negotiates",
	StatusInsufficientStorage:             "Insufficient Storage",
	StatusLoopDetected:                    "Loop Detected",
	StatusNotExtended:                     "Not Extended",
	StatusNetworkAuthenticationRequired:   "Network Authentication Required",
	StatusNetworkConnectTimeoutError:      "Network Connect Timeout Error",
}

// Reason returns the reason phrase for s, or "Unknown" for codes
// outside the table.
func (s Status) Reason() string {
	if phrase, ok := reasonPhrases[s]; ok {
		return phrase
	}
	return "Unknown"
}

// String returns the code and phrase as they appear on a status line,
// for example "404 Not Found".
func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}
