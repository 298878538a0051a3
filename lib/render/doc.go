// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns a pair of counter snapshots into the documents
// the sensor server answers with.
//
// Every renderer takes an [Input]: the topology plus a Before and an
// After snapshot. Counters are reported as the difference between the
// two, so the same code serves both "since start" (Before is the
// aggregator's zero snapshot) and "over the last N seconds" (two
// entries from the history ring).
//
// [Document] builds the nested counter document: a SystemRoot object
// holding sockets, which hold cores, which hold hyper-threads, each
// carrying its counter groups. Member order follows the topology and
// is preserved by [Object]. [JSON] and [CBOR] encode that document.
//
// [PrometheusFamilies] flattens the same counters into metric families
// labelled with their place in the hierarchy, and [Prometheus] writes
// them in the text exposition format.
//
// [Tree] draws the topology for the print-topology start-up mode.
package render
