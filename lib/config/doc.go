// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads harness configuration.
//
// One file configures every role. Its path comes from the
// FAULTLINE_CONFIG environment variable ([Load]) or a --config flag
// ([LoadFile]); there is no discovery. Without either, roles run on
// [Default]. Files ending in .json or .jsonc are read as JSON with
// comments; anything else is YAML.
//
// Environment sections (development, benchmark) override base values
// when [Config].Environment matches. The benchmark defaults drop the
// notify gap and round pause so runs measure the transport and not
// the sleeps.
//
// ${VAR} and ${VAR:-default} are expanded in path fields after
// loading; ${FAULTLINE_RUN} refers to paths.run.
//
// [Config.Validate] is the one place configuration errors surface,
// including a request label that collides with the sentinel or does
// not fit the configured label width. Roles call it before opening
// any socket.
package config
