// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/bureau-foundation/sensor-server/lib/config"
	"github.com/bureau-foundation/sensor-server/lib/hwinfo"
	"github.com/bureau-foundation/sensor-server/lib/process"
)

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--version"}, &stdout, &stderr); err != nil {
		t.Fatalf("run --version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), binaryName+" ") {
		t.Errorf("version output = %q, want prefix %q", stdout.String(), binaryName+" ")
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run --help: %v", err)
	}
	for _, flag := range []string{"--listen", "--ssl", "--print-topology", "--accel"} {
		if !strings.Contains(stdout.String(), flag) {
			t.Errorf("help output does not mention %s", flag)
		}
	}
}

func TestRunPrintTopology(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--synthetic", "--print-topology"}, &stdout, &stderr); err != nil {
		t.Fatalf("run --print-topology: %v", err)
	}
	if !strings.Contains(stdout.String(), "system:") {
		t.Errorf("topology output = %q, want a system line", stdout.String())
	}
}

func TestRunTLSWithoutCertificate(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--ssl"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("run --ssl without certificate succeeded")
	}
	if code := process.ExitCode(err); code != exitCertificate {
		t.Errorf("exit code = %d, want %d", code, exitCertificate)
	}
	if !errors.Is(err, config.ErrMissingCertificate) {
		t.Errorf("error = %v, want ErrMissingCertificate", err)
	}
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--no-such-flag"}},
		{"stray argument", []string{"serve"}},
		{"bad accelerator", []string{"--accel", "gpu"}},
		{"zero workers", []string{"--workers", "0"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(test.args, &stdout, &stderr)
			if err == nil {
				t.Fatalf("run(%v) succeeded", test.args)
			}
			if code := process.ExitCode(err); code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
		})
	}
}

func TestListenAddress(t *testing.T) {
	tests := []struct {
		name   string
		config config.Config
		want   string
	}{
		{"wildcard http", config.Config{}, "[::]:9738"},
		{"wildcard https", config.Config{TLS: config.TLSConfig{Enabled: true}}, "[::]:9739"},
		{"ipv4", config.Config{Listen: "127.0.0.1", Port: 8080}, "127.0.0.1:8080"},
		{"ipv6", config.Config{Listen: "::1"}, "[::1]:9738"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := listenAddress(&test.config); got != test.want {
				t.Errorf("listenAddress = %q, want %q", got, test.want)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		debug int
		want  slog.Level
	}{
		{0, slog.LevelInfo},
		{1, slog.LevelDebug},
		{3, slog.LevelDebug},
	}
	for _, test := range tests {
		if got := logLevel(test.debug); got != test.want {
			t.Errorf("logLevel(%d) = %v, want %v", test.debug, got, test.want)
		}
	}
}

func TestNewLoggerWritesJSONToNonTerminal(t *testing.T) {
	var buffer bytes.Buffer
	newLogger(&buffer, 0).Info("hello")
	if !strings.HasPrefix(buffer.String(), "{") {
		t.Errorf("log line = %q, want JSON", buffer.String())
	}
}

func TestBuildMachineFallsBackToSimulatedLayout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Synthetic = true

	host, err := buildMachine(cfg, hwinfo.Inventory{}, logger)
	if err != nil {
		t.Fatalf("buildMachine: %v", err)
	}
	defer host.provider.Close()

	if !host.synthetic {
		t.Error("host.synthetic = false, want true")
	}
	if got := len(host.root.Sockets()); got != fallbackSockets {
		t.Errorf("sockets = %d, want %d", got, fallbackSockets)
	}
	if got, want := host.root.CoreCount(), fallbackSockets*fallbackCoresPerSocket; got != want {
		t.Errorf("cores = %d, want %d", got, want)
	}
	if got, want := host.root.ProcessorCount(), fallbackSockets*fallbackCoresPerSocket*fallbackThreadsPerCore; got != want {
		t.Errorf("processors = %d, want %d", got, want)
	}
}
