// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

// Command matryoshka-capi builds as a C shared library
// (-buildmode=c-shared) exposing the VFS as a flat, callback-driven
// C ABI: opaque handles for FileSystem/FileHandle/Status, a
// null-return-means-check-status convention on every handle-returning
// call (Pull and ReadRange return the status handle itself; GetSize,
// Delete and Find report failure as -1 or 0), and a caller-supplied
// callback for Find's enumeration.
//
// Handles are runtime/cgo.Handle values disguised as uintptr_t on the
// C side rather than real pointers into Go memory: C never
// dereferences them, only round-trips them back into this library, so
// there is nothing for the Go garbage collector to chase and no cgo
// pointer-passing rule to violate.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef void (*matryoshka_find_callback)(const char* path, void* user_data);

static inline void matryoshka_invoke_find_callback(matryoshka_find_callback cb, const char* path, void* user_data) {
	cb(path, user_data);
}
*/
import "C"

import (
	"errors"
	"log/slog"
	"os"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/matryoshka-fs/matryoshka/lib/vfs"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

func capiLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	})
	return logger
}

type fileSystemRecord struct {
	fs *vfs.FileSystem
}

type fileHandleRecord struct {
	h *vfs.FileHandle
}

type statusRecord struct {
	message string
}

var (
	errFileSystemNotSpecified = errors.New("file system not specified")
	errFileHandleNotSpecified = errors.New("file handle not specified")
	errPathNotSpecified       = errors.New("path not specified")
)

func newStatus(err error) C.uintptr_t {
	if err == nil {
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(&statusRecord{message: err.Error()}))
}

func writeStatus(out *C.uintptr_t, err error) {
	if out == nil || err == nil {
		return
	}
	*out = newStatus(err)
}

func lookupFileSystem(h C.uintptr_t) (*vfs.FileSystem, bool) {
	if h == 0 {
		return nil, false
	}
	rec, ok := cgo.Handle(h).Value().(*fileSystemRecord)
	if !ok {
		return nil, false
	}
	return rec.fs, true
}

func lookupFileHandle(h C.uintptr_t) (*vfs.FileHandle, bool) {
	if h == 0 {
		return nil, false
	}
	rec, ok := cgo.Handle(h).Value().(*fileHandleRecord)
	if !ok {
		return nil, false
	}
	return rec.h, true
}

// MatryoshkaLoad opens (creating if absent) the container at path.
// Passing ":memory:" opens an ephemeral, process-local container. On
// failure it returns 0 and, if status is non-null, writes a status
// handle describing the failure.
//
//export MatryoshkaLoad
func MatryoshkaLoad(path *C.char, status *C.uintptr_t) C.uintptr_t {
	if path == nil {
		writeStatus(status, errPathNotSpecified)
		return 0
	}
	fs, err := vfs.Load(C.GoString(path), capiLogger())
	if err != nil {
		writeStatus(status, err)
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(&fileSystemRecord{fs: fs}))
}

// MatryoshkaDestroyFileSystem closes and releases a file system
// handle. Passing 0 is a safe no-op.
//
//export MatryoshkaDestroyFileSystem
func MatryoshkaDestroyFileSystem(h C.uintptr_t) {
	if h == 0 {
		return
	}
	handle := cgo.Handle(h)
	if rec, ok := handle.Value().(*fileSystemRecord); ok {
		rec.fs.Close()
	}
	handle.Delete()
}

// MatryoshkaDestroyStatus releases a status handle. Passing 0 is a
// safe no-op.
//
//export MatryoshkaDestroyStatus
func MatryoshkaDestroyStatus(h C.uintptr_t) {
	if h == 0 {
		return
	}
	cgo.Handle(h).Delete()
}

// MatryoshkaDestroyFileHandle releases a file handle. The underlying
// file is untouched; this only frees the handle itself. Passing 0 is
// a safe no-op.
//
//export MatryoshkaDestroyFileHandle
func MatryoshkaDestroyFileHandle(h C.uintptr_t) {
	if h == 0 {
		return
	}
	cgo.Handle(h).Delete()
}

// MatryoshkaGetMessage returns a newly allocated C string describing
// the status, or NULL if the handle is invalid. The caller must
// release it with MatryoshkaFreeString.
//
//export MatryoshkaGetMessage
func MatryoshkaGetMessage(h C.uintptr_t) *C.char {
	if h == 0 {
		return nil
	}
	rec, ok := cgo.Handle(h).Value().(*statusRecord)
	if !ok {
		return nil
	}
	return C.CString(rec.message)
}

// MatryoshkaFreeString releases a string returned by this library.
//
//export MatryoshkaFreeString
func MatryoshkaFreeString(s *C.char) {
	C.free(unsafe.Pointer(s))
}

// MatryoshkaOpen binds a handle to the existing file at path.
//
//export MatryoshkaOpen
func MatryoshkaOpen(fsHandle C.uintptr_t, path *C.char, status *C.uintptr_t) C.uintptr_t {
	fs, ok := lookupFileSystem(fsHandle)
	if !ok {
		writeStatus(status, errFileSystemNotSpecified)
		return 0
	}
	if path == nil {
		writeStatus(status, errPathNotSpecified)
		return 0
	}
	h, err := fs.Open(C.GoString(path))
	if err != nil {
		writeStatus(status, err)
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(&fileHandleRecord{h: h}))
}

// MatryoshkaPush stores the host file at hostPath as innerPath.
// chunkSize <= 0 lets the library choose.
//
//export MatryoshkaPush
func MatryoshkaPush(fsHandle C.uintptr_t, innerPath, hostPath *C.char, chunkSize C.int, status *C.uintptr_t) C.uintptr_t {
	fs, ok := lookupFileSystem(fsHandle)
	if !ok {
		writeStatus(status, errFileSystemNotSpecified)
		return 0
	}
	if innerPath == nil || hostPath == nil {
		writeStatus(status, errPathNotSpecified)
		return 0
	}
	h, err := fs.Push(C.GoString(innerPath), C.GoString(hostPath), int(chunkSize))
	if err != nil {
		writeStatus(status, err)
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(&fileHandleRecord{h: h}))
}

// MatryoshkaPull extracts the file behind fileHandle to hostPath,
// creating or truncating it. It returns 0 on success, or a status
// handle on failure.
//
//export MatryoshkaPull
func MatryoshkaPull(fileHandle C.uintptr_t, hostPath *C.char) C.uintptr_t {
	h, ok := lookupFileHandle(fileHandle)
	if !ok {
		return newStatus(errFileHandleNotSpecified)
	}
	if hostPath == nil {
		return newStatus(errPathNotSpecified)
	}
	if err := h.Pull(C.GoString(hostPath)); err != nil {
		return newStatus(err)
	}
	return 0
}

// MatryoshkaReadRange writes length bytes starting at offset from the
// file behind fileHandle to hostPath, creating or truncating it.
//
//export MatryoshkaReadRange
func MatryoshkaReadRange(fileHandle C.uintptr_t, offset, length C.longlong, hostPath *C.char) C.uintptr_t {
	h, ok := lookupFileHandle(fileHandle)
	if !ok {
		return newStatus(errFileHandleNotSpecified)
	}
	if hostPath == nil {
		return newStatus(errPathNotSpecified)
	}
	f, err := os.Create(C.GoString(hostPath))
	if err != nil {
		return newStatus(err)
	}
	defer f.Close()
	if err := h.ReadRange(int64(offset), int64(length), f); err != nil {
		return newStatus(err)
	}
	return 0
}

// MatryoshkaGetSize returns the file's byte length, or -1 on failure.
//
//export MatryoshkaGetSize
func MatryoshkaGetSize(fileHandle C.uintptr_t) C.longlong {
	h, ok := lookupFileHandle(fileHandle)
	if !ok {
		return -1
	}
	size, err := h.GetSize()
	if err != nil {
		return -1
	}
	return C.longlong(size)
}

// MatryoshkaDelete removes the file behind fileHandle. The handle
// must still be released with MatryoshkaDestroyFileHandle afterwards.
// Returns 1 if a file was actually removed, 0 otherwise.
//
//export MatryoshkaDelete
func MatryoshkaDelete(fileHandle C.uintptr_t) C.int {
	h, ok := lookupFileHandle(fileHandle)
	if !ok {
		return 0
	}
	removed, err := h.Delete()
	if err != nil || !removed {
		return 0
	}
	return 1
}

// MatryoshkaFind enumerates every file matching pattern (or every
// file, for an empty or NULL pattern), invoking callback once per
// match with userData passed through unchanged. Returns the number of
// matches, or 0 on failure.
//
//export MatryoshkaFind
func MatryoshkaFind(fsHandle C.uintptr_t, pattern *C.char, callback C.matryoshka_find_callback, userData unsafe.Pointer) C.int {
	fs, ok := lookupFileSystem(fsHandle)
	if !ok || callback == nil {
		return 0
	}
	goPattern := ""
	if pattern != nil {
		goPattern = C.GoString(pattern)
	}

	count, err := fs.Find(goPattern, func(path string) error {
		cPath := C.CString(path)
		C.matryoshka_invoke_find_callback(callback, cPath, userData)
		C.free(unsafe.Pointer(cPath))
		return nil
	})
	if err != nil {
		return 0
	}
	return C.int(count)
}

func main() {}
