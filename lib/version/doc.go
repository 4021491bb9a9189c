// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the trellis
// binary, injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/trellis-ml/trellis/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
