// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the backing store adapter: it owns the single
// SQLite connection behind one container, creates the VFS schema on
// first use, and exposes thin, parameterized helpers over
// zombiezen.com/go/sqlite for the chunked storage engine (lib/chunk) to
// build on.
//
// A Matryoshka container is bound to exactly one connection for its
// whole lifetime, unlike a pool handing out connections to many
// concurrent goroutines: same pragma discipline, same "create schema
// once" responsibility, same error wrapping, scaled down to a pool of
// one.
//
// Store applies no caching and no retries beyond what SQLite's own
// busy_timeout affords; it is a thin accessor; see lib/vfs for the
// orchestration layer and serialization guarantees.
package store
