// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryoshka-fs/matryoshka/lib/vfserr"
)

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()
	fs, err := Load(InMemory, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestPushOpenPullRoundTrip(t *testing.T) {
	fs := newTestFS(t)

	data := []byte("hello, matryoshka")
	h, err := fs.PushReader("docs/readme.txt", bytes.NewReader(data), -1)
	if err != nil {
		t.Fatalf("PushReader failed: %v", err)
	}

	opened, err := fs.Open("docs/readme.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened.ID() != h.ID() {
		t.Errorf("Open returned id %d, want %d", opened.ID(), h.ID())
	}

	var buf bytes.Buffer
	if err := opened.PullWriter(&buf); err != nil {
		t.Fatalf("PullWriter failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("pulled %q, want %q", buf.Bytes(), data)
	}

	size, err := h.GetSize()
	if err != nil {
		t.Fatalf("GetSize failed: %v", err)
	}
	if int(size) != len(data) {
		t.Errorf("GetSize = %d, want %d", size, len(data))
	}
}

func TestPushDuplicatePathFails(t *testing.T) {
	fs := newTestFS(t)

	if _, err := fs.PushReader("a", bytes.NewReader([]byte("1")), -1); err != nil {
		t.Fatalf("first PushReader failed: %v", err)
	}
	_, err := fs.PushReader("a", bytes.NewReader([]byte("2")), -1)
	if !vfserr.Is(err, vfserr.AlreadyExists) {
		t.Errorf("error kind = %v, want AlreadyExists", vfserr.KindOf(err))
	}
}

func TestOpenMissingPathFails(t *testing.T) {
	fs := newTestFS(t)
	_, err := fs.Open("missing")
	if !vfserr.Is(err, vfserr.NotFound) {
		t.Errorf("error kind = %v, want NotFound", vfserr.KindOf(err))
	}
}

func TestDeleteInvalidatesHandles(t *testing.T) {
	fs := newTestFS(t)

	h, err := fs.PushReader("a", bytes.NewReader([]byte("1")), -1)
	if err != nil {
		t.Fatalf("PushReader failed: %v", err)
	}

	stale, err := fs.FromID(h.ID())
	if err != nil {
		t.Fatalf("FromID failed: %v", err)
	}

	removed, err := h.Delete()
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Error("Delete returned false, want true")
	}

	if _, err := stale.GetSize(); !vfserr.Is(err, vfserr.NotFound) {
		t.Errorf("GetSize on deleted file error kind = %v, want NotFound", vfserr.KindOf(err))
	}

	removedAgain, err := h.Delete()
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if removedAgain {
		t.Error("second Delete returned true, want false")
	}
}

func TestFromIDMissing(t *testing.T) {
	fs := newTestFS(t)
	if _, err := fs.FromID(999); !vfserr.Is(err, vfserr.NotFound) {
		t.Errorf("error kind = %v, want NotFound", vfserr.KindOf(err))
	}
}

func TestPushPullHostFiles(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "in.bin")
	data := bytes.Repeat([]byte{9}, 5000)
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	h, err := fs.Push("bin/in", src, 1024)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	dst := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dst, []byte("stale content that must be truncated"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := h.Pull(dst); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("pulled host file mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestFindAll(t *testing.T) {
	fs := newTestFS(t)

	for _, p := range []string{"a/x", "a/y", "b/x"} {
		if _, err := fs.PushReader(p, bytes.NewReader([]byte{1}), -1); err != nil {
			t.Fatalf("PushReader(%q) failed: %v", p, err)
		}
	}

	paths, err := fs.FindAll("a/*")
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("FindAll(\"a/*\") returned %d paths, want 2", len(paths))
	}

	all, err := fs.FindAll("")
	if err != nil {
		t.Fatalf("FindAll(\"\") failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("FindAll(\"\") returned %d paths, want 3", len(all))
	}
}

func TestReadRangePartial(t *testing.T) {
	fs := newTestFS(t)

	h, err := fs.PushReader("f", bytes.NewReader([]byte("0123456789")), 4)
	if err != nil {
		t.Fatalf("PushReader failed: %v", err)
	}

	var buf bytes.Buffer
	if err := h.ReadRange(3, 4, &buf); err != nil {
		t.Fatalf("ReadRange failed: %v", err)
	}
	if buf.String() != "3456" {
		t.Errorf("ReadRange(3, 4) = %q, want %q", buf.String(), "3456")
	}
}

func TestPushEmptyPathFails(t *testing.T) {
	fs := newTestFS(t)
	if _, err := fs.PushReader("", bytes.NewReader(nil), -1); !vfserr.Is(err, vfserr.InvalidArgument) {
		t.Errorf("error kind = %v, want InvalidArgument", vfserr.KindOf(err))
	}
}
