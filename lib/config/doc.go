// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the sensor server configuration.
//
// Configuration starts from [Default], is optionally replaced field by
// field from a file given with --config ([LoadFile]), and is finally
// overridden by the command-line flags the user set explicitly
// ([AddFlags] and [Config.ApplyFlags]). The file is YAML, or JSON with
// comments when its name ends in .json or .jsonc. Unknown keys are
// errors.
//
// Variable expansion is performed on the TLS file paths after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. The only
// environment variable consulted otherwise is
// PCMSENSORSERVER_PRINT_TOPOLOGY ([Config.ApplyEnvironment]).
//
// [Config.Validate] reports every problem at once, joined with
// errors.Join.
//
// This package depends on no other sensor server packages.
package config
