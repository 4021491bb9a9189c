// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package datacard reads dataset cards: Markdown documents with a
// YAML front matter block carrying the dataset's identity, license,
// and tags. The front matter is the machine-read part; from the body
// only the heading outline is extracted, for display by trellis
// inspect. Card identity and license are recorded into the manifest
// with each run.
package datacard
