// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	humanize "github.com/dustin/go-humanize"

	"github.com/matryoshka-fs/matryoshka/lib/chunk"
	"github.com/matryoshka-fs/matryoshka/lib/store"
	"github.com/matryoshka-fs/matryoshka/lib/vfserr"
)

// InMemory is the container-location sentinel requesting an ephemeral
// in-memory container.
const InMemory = store.InMemoryPath

// FileSystem is a loaded Matryoshka container. It owns the backing
// connection and serializes every call against it with mu: one
// connection per handle, one call on that connection at a time.
type FileSystem struct {
	mu     sync.Mutex
	store  *store.Store
	logger *slog.Logger
}

// Load opens (creating if absent) the container at path and ensures
// its schema exists. Pass [InMemory] for an ephemeral container. If
// logger is nil, a discard logger is used.
func Load(path string, logger *slog.Logger) (*FileSystem, error) {
	s, err := store.Open(path, logger)
	if err != nil {
		return nil, err
	}
	return &FileSystem{store: s, logger: s.Logger()}, nil
}

// Close closes the backing connection. After Close, the FileSystem
// and any FileHandle obtained from it must not be used.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.store.Close()
}

// FileHandle is an opaque reference to one file in a FileSystem. It
// carries only the file's row id and a non-owning reference back to
// the FileSystem, so there is no cyclic ownership. Destroying a
// handle (dropping the Go value) does not affect the underlying file;
// after the file is deleted, GetSize, Pull and ReadRange on any handle
// referencing it fail not_found, and Delete returns false.
type FileHandle struct {
	fs *FileSystem
	id int64
}

// ID returns the file's underlying row id. Two handles referencing
// the same file compare equal by ID even if obtained from separate
// Open/Push/FromID calls.
func (h *FileHandle) ID() int64 { return h.id }

// PushReader stores the content read from r at path with the given
// declared chunk size: <= 0 selects an implementation-chosen default,
// > 0 is used verbatim (clamped to [chunk.MaxChunkSize]).
func (fs *FileSystem) PushReader(path string, r io.Reader, chunkSize int) (*FileHandle, error) {
	if path == "" {
		return nil, vfserr.New(vfserr.InvalidArgument, fmt.Errorf("push: path must not be empty"))
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fileID, effective, err := chunk.Push(fs.store.Conn(), path, r, chunkSize)
	if err != nil {
		fs.logger.Error("push failed", "path", path, "error", err)
		return nil, err
	}

	size, err := chunk.Size(fs.store.Conn(), fileID)
	if err != nil {
		fs.logger.Error("push: sizing new file failed", "path", path, "error", err)
		return nil, err
	}

	fs.logger.Info("pushed file",
		"path", path,
		"size", humanize.Bytes(uint64(size)),
		"chunk_size", effective,
	)
	return &FileHandle{fs: fs, id: fileID}, nil
}

// Push reads hostPath from the host filesystem and stores it at path
// in the VFS.
func (fs *FileSystem) Push(path, hostPath string, chunkSize int) (*FileHandle, error) {
	f, err := os.Open(hostPath)
	if err != nil {
		return nil, vfserr.Newf(vfserr.IO, "push: opening host file %s: %w", hostPath, err)
	}
	defer f.Close()

	return fs.PushReader(path, f, chunkSize)
}

// Open binds a fresh handle to the existing file at path.
func (fs *FileSystem) Open(path string) (*FileHandle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fileID, _, err := chunk.Open(fs.store.Conn(), path)
	if err != nil {
		return nil, err
	}
	return &FileHandle{fs: fs, id: fileID}, nil
}

// FromID binds a fresh handle to the file with the given row id, if
// one still exists. It lets a caller reconstruct a handle from a
// previously persisted id without going through Open by path.
func (fs *FileSystem) FromID(id int64) (*FileHandle, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok, err := chunk.Exists(fs.store.Conn(), id); err != nil {
		return nil, err
	} else if !ok {
		return nil, vfserr.Newf(vfserr.NotFound, "file id %d not found", id)
	}
	return &FileHandle{fs: fs, id: id}, nil
}

// PullWriter streams h's chunks, in ascending ordinal order, to w.
func (h *FileHandle) PullWriter(w io.Writer) error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if err := chunk.PullWriter(h.fs.store.Conn(), h.id, w); err != nil {
		h.fs.logger.Error("pull failed", "file_id", h.id, "error", err)
		return err
	}
	return nil
}

// Pull extracts h's content to hostPath, creating the file and
// truncating it if it already exists. On any write or read failure
// the partial host file is left as-is; cleanup is the caller's
// responsibility.
func (h *FileHandle) Pull(hostPath string) error {
	f, err := os.Create(hostPath)
	if err != nil {
		return vfserr.Newf(vfserr.IO, "pull: creating host file %s: %w", hostPath, err)
	}
	defer f.Close()

	if err := h.PullWriter(f); err != nil {
		return err
	}

	h.fs.mu.Lock()
	size, _ := chunk.Size(h.fs.store.Conn(), h.id)
	h.fs.mu.Unlock()
	h.fs.logger.Info("pulled file", "file_id", h.id, "host_path", hostPath, "size", humanize.Bytes(uint64(size)))
	return nil
}

// GetSize returns the derived total byte length of h's file.
func (h *FileHandle) GetSize() (int64, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	return chunk.Size(h.fs.store.Conn(), h.id)
}

// ReadRange writes the length bytes of h starting at offset to w,
// without pulling the whole file.
func (h *FileHandle) ReadRange(offset, length int64, w io.Writer) error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	r, err := chunk.ReadRange(h.fs.store.Conn(), h.id, offset, length)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return vfserr.Newf(vfserr.IO, "read range: writing sink: %w", err)
	}
	return nil
}

// Delete removes h's file and all of its chunks. It returns whether a
// row was actually removed, so repeated deletes of the same
// (now-gone) file are idempotent rather than erroring.
func (h *FileHandle) Delete() (bool, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	removed, err := chunk.Delete(h.fs.store.Conn(), h.id)
	if err != nil {
		h.fs.logger.Error("delete failed", "file_id", h.id, "error", err)
		return false, err
	}
	h.fs.logger.Info("deleted file", "file_id", h.id, "removed", removed)
	return removed, nil
}

// FindSink receives each matching path during Find.
type FindSink = chunk.FindSink

// Find enumerates every file whose path matches pattern (or every
// file, when pattern is empty, equivalent to "*"), invoking sink once
// per match.
func (fs *FileSystem) Find(pattern string, sink FindSink) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return chunk.Find(fs.store.Conn(), pattern, sink)
}

// FindAll is a convenience wrapping Find that collects every matching
// path into a slice, for callers that don't need streaming
// enumeration.
func (fs *FileSystem) FindAll(pattern string) ([]string, error) {
	var paths []string
	_, err := fs.Find(pattern, func(path string) error {
		paths = append(paths, path)
		return nil
	})
	return paths, err
}
