// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs is the VFS facade: it owns the backing-store connection
// for one container, validates inputs, serializes every call against
// that connection, and translates the host-facing operations — Push,
// Open, Pull, Find, Delete, GetSize — into lib/chunk calls.
//
// A FileSystem has no cache: every call hits lib/store's connection.
// Distinct FileSystem values (even against the same container file)
// are independent, subject to the backing store's own file-locking
// policy.
package vfs
