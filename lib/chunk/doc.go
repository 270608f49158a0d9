// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunk implements the chunked storage engine: it splits file
// payloads across fixed-size rows of the chunks table on push, streams
// them back in ascending ordinal order on pull, and maintains
// per-file path uniqueness and dense, contiguous chunk ordinals.
//
// Every function in this package takes an already-open
// *zombiezen.com/go/sqlite.Conn (via lib/store) and issues
// parameterized statements against it directly — this package holds
// no state of its own and performs no locking; lib/vfs is responsible
// for serializing calls on a connection.
package chunk
