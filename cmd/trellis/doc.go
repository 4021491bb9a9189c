// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Command trellis is the unified CLI for the Trellis preprocessing
// toolkit: corpus sampling, encoding into example shards, shard
// inspection, and manifest queries.
package main
