// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the sensor server's CBOR configuration.
//
// The server answers "Accept: application/cbor" with the same counter
// document it renders as JSON. Every CBOR byte the server produces goes
// through this package so the encoding options live in one place:
// Core Deterministic Encoding (sorted map keys, smallest integer
// encoding, no indefinite-length items) and shortest-form floats.
// Identical documents therefore encode to identical bytes, which makes
// responses cacheable by content hash.
//
//	data, err := codec.Marshal(document)
//	err = codec.Unmarshal(data, &decoded)
//
// Struct fields use `cbor` tags when a type is only ever CBOR, and
// `json` tags when it is rendered both ways: fxamacker/cbor falls back
// to `json` tags when no `cbor` tag is present.
package codec
