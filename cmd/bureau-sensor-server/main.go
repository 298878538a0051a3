// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sensor-server/lib/aggregator"
	"github.com/bureau-foundation/sensor-server/lib/certreload"
	"github.com/bureau-foundation/sensor-server/lib/config"
	"github.com/bureau-foundation/sensor-server/lib/endpoint"
	"github.com/bureau-foundation/sensor-server/lib/executor"
	"github.com/bureau-foundation/sensor-server/lib/history"
	"github.com/bureau-foundation/sensor-server/lib/httpserver"
	"github.com/bureau-foundation/sensor-server/lib/process"
	"github.com/bureau-foundation/sensor-server/lib/render"
	"github.com/bureau-foundation/sensor-server/lib/version"
)

const binaryName = "bureau-sensor-server"

// Exit codes beyond the default 1.
const (
	// exitCertificate reports HTTPS requested without a usable
	// certificate and key.
	exitCertificate = 5
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var configPath string
	var showVersion bool

	parsed := config.Default()
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML or JSONC configuration file")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	config.AddFlags(flagSet, parsed)
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(stdout, "Usage: %s [flags]\n\n%s", binaryName, flagSet.FlagUsages())
		return nil
	}
	if showVersion {
		version.Print(stdout, binaryName)
		return nil
	}
	if remaining := flagSet.Args(); len(remaining) > 0 {
		return fmt.Errorf("unexpected argument: %s", remaining[0])
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyFlags(flagSet, parsed)
	cfg.ApplyEnvironment(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingCertificate) || errors.Is(err, config.ErrMissingKey) {
			return process.WithCode(exitCertificate, err)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(stderr, cfg.Debug)
	slog.SetDefault(logger)

	host, err := openMachine(cfg, logger)
	if err != nil {
		return err
	}
	defer host.provider.Close()

	if cfg.PrintTopology {
		fmt.Fprintln(stdout, render.Tree(host.root))
		return nil
	}

	if cfg.Realtime {
		if err := setRealtimePriority(); err != nil {
			return fmt.Errorf("setting realtime priority: %w", err)
		}
		logger.Info("running at realtime priority", "policy", "SCHED_RR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, host, logger)
}

// serve runs the fetcher and the HTTP server until ctx is cancelled,
// then stops them in dependency order.
func serve(ctx context.Context, cfg *config.Config, host *machine, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	samplers := executor.New(executor.Config{Name: "sampler", Workers: cfg.Workers, Logger: logger})
	defer samplers.Drain()
	connections := executor.New(executor.Config{Name: "connections", Workers: cfg.Workers, Logger: logger})
	defer connections.Drain()
	background := executor.New(executor.Config{Name: "fetcher", Workers: 1, Logger: logger})
	defer background.Drain()

	sampler := aggregator.New(aggregator.Config{Pool: samplers, System: host.provider, Logger: logger})
	snapshots := history.New()
	fetcher := history.NewFetcher(history.FetcherConfig{
		History:    snapshots,
		Dispatcher: sampler,
		Root:       host.root,
		Interval:   cfg.Interval,
		Logger:     logger,
	})
	fetcher.Start()
	background.Submit(fetcher)
	defer func() {
		fetcher.Stop()
		<-fetcher.Done()
	}()

	routes, err := endpoint.New(endpoint.Config{
		Root:         host.root,
		Sampler:      sampler,
		History:      snapshots,
		Accelerators: cfg.Accelerator != "",
		Gatherer:     registry,
		Title:        cfg.Title,
		Logger:       logger,
		Metrics:      endpoint.NewMetrics(registry),
	})
	if err != nil {
		return err
	}

	serverConfig := httpserver.Config{
		Address:    listenAddress(cfg),
		Handlers:   routes.Handlers(),
		Pool:       connections,
		Logger:     logger,
		ServerName: version.ServerHeader(binaryName),
		Metrics:    httpserver.NewMetrics(registry),
	}
	if cfg.TLS.Enabled {
		reloader, err := certreload.New(certreload.Config{
			CertificatePath: cfg.TLS.Certificate,
			KeyPath:         cfg.TLS.Key,
			Logger:          logger,
		})
		if err != nil {
			return process.WithCode(exitCertificate, err)
		}
		defer reloader.Close()
		serverConfig.TLS = reloader.TLSConfig()
	}

	logger.Info("sensor server starting",
		"version", version.Info(),
		"sockets", len(host.root.Sockets()),
		"cores", host.root.CoreCount(),
		"processors", host.root.ProcessorCount(),
		"uncore", host.root.Class.String(),
		"synthetic", host.synthetic,
		"interval", cfg.Interval,
		"workers", cfg.Workers,
	)

	err = httpserver.New(serverConfig).Serve(ctx)
	logger.Info("shutting down")
	return err
}

// listenAddress joins the configured IP, or the IPv6 wildcard, with
// the effective port.
func listenAddress(cfg *config.Config) string {
	host := cfg.Listen
	if host == "" {
		host = "::"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.ListenPort()))
}
