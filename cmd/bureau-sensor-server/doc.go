// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-sensor-server samples processor, memory, interconnect and
// accelerator counters and serves them over HTTP or HTTPS as an HTML
// landing page, JSON, Prometheus text or CBOR.
//
// Configuration comes from an optional YAML or JSONC file (--config)
// overridden by command-line flags. Without access to perf events, or
// with --synthetic, generated counters are served instead. With
// --print-topology (or PCMSENSORSERVER_PRINT_TOPOLOGY=1) the server
// prints the discovered topology and exits.
//
// Exit codes: 0 on clean shutdown, 1 on configuration or startup
// failure, 5 when HTTPS is requested without a usable certificate and
// key.
package main
