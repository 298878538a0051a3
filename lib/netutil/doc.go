// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies connection errors for the protocol
// engine. [IsExpectedCloseError] recognises normal peer teardown and
// [IsTimeout] recognises an expired read deadline. Both are orderly
// ends of a keep-alive connection and are not logged as failures.
package netutil
