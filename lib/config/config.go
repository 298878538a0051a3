// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Default ports. The HTTPS port applies when TLS is enabled and no
// port was configured.
const (
	DefaultHTTPPort  = 9738
	DefaultHTTPSPort = 9739
)

// DefaultWorkers is the size of each executor pool.
const DefaultWorkers = 64

// Accelerator names accepted by Config.Accelerator.
var Accelerators = []string{"iaa", "dsa", "qat"}

// Config is the sensor server configuration.
type Config struct {
	// Listen is the IP address to bind. Empty binds the IPv6 wildcard,
	// which also accepts IPv4 on dual-stack hosts.
	Listen string `yaml:"listen"`

	// Port is the TCP port. Zero selects DefaultHTTPPort, or
	// DefaultHTTPSPort when TLS is enabled.
	Port int `yaml:"port"`

	TLS TLSConfig `yaml:"tls"`

	// Debug is the verbosity level. Zero logs at info, anything higher
	// at debug.
	Debug int `yaml:"debug"`

	// Workers is the size of each of the two executor pools.
	Workers int `yaml:"workers"`

	// Interval is the sampling period of the periodic fetcher.
	Interval time.Duration `yaml:"interval"`

	// Realtime raises the server to the lowest SCHED_RR priority.
	Realtime bool `yaml:"realtime"`

	// Synthetic replaces hardware counters with generated ones.
	Synthetic bool `yaml:"synthetic"`

	// PrintTopology prints the discovered topology and exits.
	PrintTopology bool `yaml:"print_topology"`

	// Accelerator adds an accelerator section for one device family:
	// "iaa", "dsa" or "qat". Empty disables it.
	Accelerator string `yaml:"accelerator"`

	// Title is the landing page title.
	Title string `yaml:"title"`
}

// TLSConfig configures HTTPS.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// Certificate and Key are PEM file paths. Both are reloaded when
	// the files change on disk.
	Certificate string `yaml:"certificate"`
	Key         string `yaml:"key"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Workers:  DefaultWorkers,
		Interval: time.Second,
	}
}

// ListenPort returns the configured port or the default for the
// selected protocol.
func (c *Config) ListenPort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.TLS.Enabled {
		return DefaultHTTPSPort
	}
	return DefaultHTTPPort
}

// LoadFile loads configuration from path on top of Default. Files
// ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is YAML. The only expansion
// performed is ${HOME} and similar variables in the TLS file paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current
// config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so one set of field tags serves
		// both formats.
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// TLS file paths.
func (c *Config) expandVariables() {
	c.TLS.Certificate = expandVars(c.TLS.Certificate)
	c.TLS.Key = expandVars(c.TLS.Key)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}

	if c.TLS.Enabled {
		if c.TLS.Certificate == "" {
			errs = append(errs, ErrMissingCertificate)
		}
		if c.TLS.Key == "" {
			errs = append(errs, ErrMissingKey)
		}
	}

	if c.Debug < 0 {
		errs = append(errs, fmt.Errorf("debug level must not be negative, got %d", c.Debug))
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	if c.Interval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("interval must be at least 100ms, got %s", c.Interval))
	}

	if c.Accelerator != "" && !slices.Contains(Accelerators, c.Accelerator) {
		errs = append(errs, fmt.Errorf("accelerator must be one of: %v", Accelerators))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

var (
	// ErrMissingCertificate is returned by Validate when TLS is
	// enabled without a certificate file.
	ErrMissingCertificate = errors.New("tls.certificate is required when TLS is enabled")

	// ErrMissingKey is returned by Validate when TLS is enabled
	// without a key file.
	ErrMissingKey = errors.New("tls.key is required when TLS is enabled")
)

// AddFlags registers one command-line flag per option on flags,
// storing parsed values in target. target's current values are the
// flag defaults.
func AddFlags(flags *pflag.FlagSet, target *Config) {
	flags.StringVarP(&target.Listen, "listen", "l", target.Listen, "IP address to listen on (default: all interfaces)")
	flags.IntVarP(&target.Port, "port", "p", target.Port, fmt.Sprintf("TCP port (default %d, or %d with --ssl)", DefaultHTTPPort, DefaultHTTPSPort))
	flags.BoolVarP(&target.TLS.Enabled, "ssl", "s", target.TLS.Enabled, "serve HTTPS")
	flags.StringVar(&target.TLS.Certificate, "certificate", target.TLS.Certificate, "PEM certificate file for HTTPS")
	flags.StringVar(&target.TLS.Key, "private-key", target.TLS.Key, "PEM private key file for HTTPS")
	flags.IntVarP(&target.Debug, "debug", "D", target.Debug, "debug level (0 info, 1 and above debug)")
	flags.IntVar(&target.Workers, "workers", target.Workers, "workers per executor pool")
	flags.DurationVar(&target.Interval, "interval", target.Interval, "sampling interval")
	flags.BoolVarP(&target.Realtime, "realtime", "R", target.Realtime, "run at the lowest SCHED_RR priority")
	flags.BoolVar(&target.Synthetic, "synthetic", target.Synthetic, "serve generated counters instead of hardware ones")
	flags.BoolVar(&target.PrintTopology, "print-topology", target.PrintTopology, "print the processor topology and exit")
	flags.StringVar(&target.Accelerator, "accel", target.Accelerator, "accelerator family to report: iaa, dsa or qat")
	flags.StringVar(&target.Title, "title", target.Title, "landing page title")
}

// ApplyFlags copies every option the command line set explicitly from
// parsed into c. Options left at their defaults keep c's values, so a
// config file is overridden only where the user asked.
func (c *Config) ApplyFlags(flags *pflag.FlagSet, parsed *Config) {
	overrides := map[string]func(){
		"listen":         func() { c.Listen = parsed.Listen },
		"port":           func() { c.Port = parsed.Port },
		"ssl":            func() { c.TLS.Enabled = parsed.TLS.Enabled },
		"certificate":    func() { c.TLS.Certificate = parsed.TLS.Certificate },
		"private-key":    func() { c.TLS.Key = parsed.TLS.Key },
		"debug":          func() { c.Debug = parsed.Debug },
		"workers":        func() { c.Workers = parsed.Workers },
		"interval":       func() { c.Interval = parsed.Interval },
		"realtime":       func() { c.Realtime = parsed.Realtime },
		"synthetic":      func() { c.Synthetic = parsed.Synthetic },
		"print-topology": func() { c.PrintTopology = parsed.PrintTopology },
		"accel":          func() { c.Accelerator = parsed.Accelerator },
		"title":          func() { c.Title = parsed.Title },
	}
	for name, apply := range overrides {
		if flags.Changed(name) {
			apply()
		}
	}
}

// ApplyEnvironment applies the environment variables the server
// honours. PCMSENSORSERVER_PRINT_TOPOLOGY=1 turns on PrintTopology.
func (c *Config) ApplyEnvironment(lookup func(string) (string, bool)) {
	if value, ok := lookup("PCMSENSORSERVER_PRINT_TOPOLOGY"); ok && value == "1" {
		c.PrintTopology = true
	}
}
