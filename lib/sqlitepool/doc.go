// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a fixed-size pool of SQLite connections
// with Trellis-standard pragmas applied to every connection.
//
// The manifest is the only database in the tree: a local,
// single-writer catalogue of runs, shards, and drop counts. The pool
// still matters because "trellis stats" queries may run while an
// encode pass is writing, and WAL mode lets those reads proceed
// without blocking the writer.
//
// Wraps zombiezen.com/go/sqlite/sqlitex and exposes the same
// Take/Put API.
package sqlitepool
