// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the standard binary entrypoint error
// handler. It exists so main functions stay one line of error
// handling and exit codes are consistent across commands.
package process
