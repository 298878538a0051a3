// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package certreload serves a TLS certificate that follows its PEM
// files on disk.
//
// A [Reloader] loads the certificate and key once at construction and
// then watches their directories with fsnotify. Directories rather than
// files are watched so replacements by rename (the way certificate
// managers and mounted secrets update) are seen. A reload that fails,
// for example because only one of the two files has been rewritten so
// far, keeps the previous certificate and is retried on the next event.
//
// [Reloader.GetCertificate] plugs into tls.Config.GetCertificate, so
// connections accepted after a reload use the new certificate without
// restarting the listener.
package certreload
