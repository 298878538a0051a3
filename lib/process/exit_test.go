// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	base := errors.New("certificate file not given")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", base, 1},
		{"coded", WithCode(5, base), 5},
		{"wrapped coded", fmt.Errorf("starting server: %w", WithCode(5, base)), 5},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ExitCode(test.err); got != test.want {
				t.Errorf("ExitCode = %d, want %d", got, test.want)
			}
		})
	}
	if !errors.Is(WithCode(5, base), base) {
		t.Error("ExitError does not unwrap to its cause")
	}
}
