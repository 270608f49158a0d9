// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"errors"
	"fmt"
	"io"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/matryoshka-fs/matryoshka/lib/globmatch"
	"github.com/matryoshka-fs/matryoshka/lib/store"
	"github.com/matryoshka-fs/matryoshka/lib/vfserr"
)

// DefaultChunkSize is the effective chunk size stored for a file when
// the caller requests no particular chunking (c <= 0). 64 KiB balances
// row count against per-row overhead for typical files without the
// caller having to think about it.
const DefaultChunkSize = 64 * 1024

// MaxChunkSize is a conservative ceiling a requested chunk size is
// clamped to, mirroring SQLite's default SQLITE_MAX_LENGTH so a huge
// requested chunk size fails fast and predictably instead of surfacing
// as an opaque constraint violation on the first oversized blob
// insert.
const MaxChunkSize = 1_000_000_000

// EffectiveChunkSize resolves a caller-requested chunk size to the
// value that is actually stored in files.chunk_size: non-positive
// requests select [DefaultChunkSize]; oversized requests are clamped
// to [MaxChunkSize]; everything else passes through verbatim.
func EffectiveChunkSize(requested int) int {
	if requested <= 0 {
		return DefaultChunkSize
	}
	if requested > MaxChunkSize {
		return MaxChunkSize
	}
	return requested
}

// Push inserts a new files row for path, partitions r into chunks of
// the resolved effective chunk size, and inserts each chunk row, all
// inside one transaction. On any failure after the uniqueness check
// succeeds, the whole operation is rolled back: the caller never
// observes a files row with a partial or missing set of chunks rows.
func Push(conn *sqlite.Conn, path string, r io.Reader, requestedChunkSize int) (fileID int64, effectiveChunkSize int, err error) {
	effectiveChunkSize = EffectiveChunkSize(requestedChunkSize)

	err = store.Transact(conn, func() error {
		insErr := sqlitex.Execute(conn, store.InsertFileSQL, &sqlitex.ExecOptions{
			Args: []any{path, int64(effectiveChunkSize)},
		})
		if insErr != nil {
			if store.ErrConstraint(insErr) {
				return vfserr.Newf(vfserr.AlreadyExists, "push %q: path already exists", path)
			}
			return store.WrapStorage("push: inserting file row: %w", insErr)
		}
		fileID = conn.LastInsertRowID()

		return writeChunks(conn, fileID, r, effectiveChunkSize)
	})
	if err != nil {
		fileID = 0
	}
	return fileID, effectiveChunkSize, err
}

// writeChunks partitions r into chunks of chunkSize and inserts them
// with strictly increasing, dense ordinals starting at 0. A
// zero-length r produces exactly one empty chunk so that size is
// always derivable as sum-of-lengths.
func writeChunks(conn *sqlite.Conn, fileID int64, r io.Reader, chunkSize int) error {
	buf := make([]byte, chunkSize)
	ordinal := 0
	wroteAny := false

	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if execErr := insertChunk(conn, fileID, ordinal, buf[:n]); execErr != nil {
				return store.WrapStorage("push: inserting chunk: %w", execErr)
			}
			ordinal++
			wroteAny = true
		}

		switch {
		case readErr == nil:
			continue // buf was filled completely; there may be more data.
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			if !wroteAny {
				if execErr := insertChunk(conn, fileID, 0, buf[:0]); execErr != nil {
					return store.WrapStorage("push: inserting empty chunk: %w", execErr)
				}
			}
			return nil
		default:
			return vfserr.Newf(vfserr.IO, "push: reading source: %w", readErr)
		}
	}
}

func insertChunk(conn *sqlite.Conn, fileID int64, ordinal int, payload []byte) error {
	return sqlitex.Execute(conn, store.InsertChunkSQL, &sqlitex.ExecOptions{
		Args: []any{fileID, int64(ordinal), payload},
	})
}

// Open looks up the unique files row for path and returns its id and
// effective chunk size.
func Open(conn *sqlite.Conn, path string) (fileID int64, effectiveChunkSize int, err error) {
	found := false
	execErr := sqlitex.Execute(conn, store.SelectFileSQL, &sqlitex.ExecOptions{
		Args: []any{path},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			fileID = stmt.ColumnInt64(0)
			effectiveChunkSize = stmt.ColumnInt(1)
			return nil
		},
	})
	if execErr != nil {
		return 0, 0, store.WrapStorage("open: querying file: %w", execErr)
	}
	if !found {
		return 0, 0, vfserr.Newf(vfserr.NotFound, "open %q: no such file", path)
	}
	return fileID, effectiveChunkSize, nil
}

// Exists reports whether fileID still has a live files row, and its
// effective chunk size when it does. Handles are allocated once and
// may outlive the row they reference (deleted via another handle);
// Size, PullWriter and ReadRange re-validate a handle this way before
// touching chunks, so a stale handle fails not_found (Delete instead
// reports false). Since files.id is AUTOINCREMENT, a deleted id is
// never handed to a later file.
func Exists(conn *sqlite.Conn, fileID int64) (effectiveChunkSize int, ok bool, err error) {
	execErr := sqlitex.Execute(conn, store.SelectByIDSQL, &sqlitex.ExecOptions{
		Args: []any{fileID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ok = true
			effectiveChunkSize = stmt.ColumnInt(0)
			return nil
		},
	})
	if execErr != nil {
		return 0, false, store.WrapStorage("exists: querying file: %w", execErr)
	}
	return effectiveChunkSize, ok, nil
}

// Size returns the sum of chunk payload lengths for fileID, computed
// entirely in the backing store.
func Size(conn *sqlite.Conn, fileID int64) (int64, error) {
	if _, ok, err := Exists(conn, fileID); err != nil {
		return 0, err
	} else if !ok {
		return 0, vfserr.Newf(vfserr.NotFound, "size: file id %d not found", fileID)
	}

	var size int64
	execErr := sqlitex.Execute(conn, store.SizeSQL, &sqlitex.ExecOptions{
		Args: []any{fileID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			size = stmt.ColumnInt64(0)
			return nil
		},
	})
	if execErr != nil {
		return 0, store.WrapStorage("size: querying chunks: %w", execErr)
	}
	return size, nil
}

// Delete removes the files row for fileID. The ON DELETE CASCADE
// foreign key removes all of its chunks rows. It returns whether a
// row was actually removed: a second delete for the same (now-gone)
// id returns false rather than an error.
func Delete(conn *sqlite.Conn, fileID int64) (bool, error) {
	if err := sqlitex.Execute(conn, store.DeleteFileSQL, &sqlitex.ExecOptions{
		Args: []any{fileID},
	}); err != nil {
		return false, store.WrapStorage("delete: %w", err)
	}
	return conn.Changes() > 0, nil
}

// PullWriter streams fileID's chunks to w in ascending ordinal order,
// reading each chunk's payload via
// incremental blob I/O so no chunk larger than its own declared size
// is ever held twice in memory.
func PullWriter(conn *sqlite.Conn, fileID int64, w io.Writer) error {
	if _, ok, err := Exists(conn, fileID); err != nil {
		return err
	} else if !ok {
		return vfserr.Newf(vfserr.NotFound, "pull: file id %d not found", fileID)
	}

	rowIDs, err := chunkRowIDs(conn, fileID)
	if err != nil {
		return err
	}

	for _, rowID := range rowIDs {
		if err := copyBlob(conn, rowID, w); err != nil {
			return err
		}
	}
	return nil
}

// chunkRowIDs returns the rowid of every chunk row of fileID, ordered
// by ordinal. Collecting rowids first (rather than interleaving blob
// reads with statement stepping) keeps exactly one SQLite statement
// and one blob handle active at a time.
func chunkRowIDs(conn *sqlite.Conn, fileID int64) ([]int64, error) {
	var rowIDs []int64
	err := sqlitex.Execute(conn, store.SelectOrdinalSQL, &sqlitex.ExecOptions{
		Args: []any{fileID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rowIDs = append(rowIDs, stmt.ColumnInt64(0))
			return nil
		},
	})
	if err != nil {
		return nil, store.WrapStorage("pull: listing chunks: %w", err)
	}
	return rowIDs, nil
}

// copyBlob streams one chunk's payload to w using incremental blob
// I/O: the payload never needs to be materialized as a single []byte
// larger than a fixed internal read buffer.
func copyBlob(conn *sqlite.Conn, rowID int64, w io.Writer) error {
	blob, err := conn.OpenBlob("main", "chunks", "payload", rowID, false)
	if err != nil {
		return vfserr.Newf(vfserr.Storage, "pull: opening chunk %d: %w", rowID, err)
	}
	defer blob.Close()

	if _, err := io.Copy(w, blob); err != nil {
		return vfserr.Newf(vfserr.IO, "pull: writing chunk %d: %w", rowID, err)
	}
	return nil
}

// ErrOutOfRange is wrapped (with vfserr.InvalidArgument) when
// ReadRange is asked for bytes beyond the end of the file.
var ErrOutOfRange = errors.New("chunk: read range out of bounds")

// ReadRange returns a reader over the length bytes of fileID starting
// at offset, touching only the chunks that overlap [offset, offset+length).
func ReadRange(conn *sqlite.Conn, fileID int64, offset, length int64) (io.Reader, error) {
	effectiveChunkSize, ok, err := Exists(conn, fileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vfserr.Newf(vfserr.NotFound, "read range: file id %d not found", fileID)
	}
	if offset < 0 || length < 0 {
		return nil, vfserr.New(vfserr.InvalidArgument, fmt.Errorf("read range: negative offset or length"))
	}
	if length == 0 {
		return io.LimitReader(nil, 0), nil
	}

	size, err := Size(conn, fileID)
	if err != nil {
		return nil, err
	}
	if offset+length > size {
		return nil, vfserr.New(vfserr.InvalidArgument, ErrOutOfRange)
	}

	chunkSize := int64(effectiveChunkSize)
	firstOrdinal := offset / chunkSize
	lastOrdinal := (offset + length - 1) / chunkSize

	rowIDs, ordinals, err := chunkRowIDsInRange(conn, fileID, firstOrdinal, lastOrdinal)
	if err != nil {
		return nil, err
	}

	return &rangeReader{
		conn:      conn,
		rowIDs:    rowIDs,
		ordinals:  ordinals,
		chunkSize: chunkSize,
		offset:    offset,
		remaining: length,
	}, nil
}

func chunkRowIDsInRange(conn *sqlite.Conn, fileID, first, last int64) (rowIDs, ordinals []int64, err error) {
	execErr := sqlitex.Execute(conn, store.SelectOrdinalRangeSQL, &sqlitex.ExecOptions{
		Args: []any{fileID, first, last},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rowIDs = append(rowIDs, stmt.ColumnInt64(0))
			ordinals = append(ordinals, stmt.ColumnInt64(1))
			return nil
		},
	})
	if execErr != nil {
		return nil, nil, store.WrapStorage("read range: listing chunks: %w", execErr)
	}
	return rowIDs, ordinals, nil
}

// rangeReader is an io.Reader over a contiguous byte range spanning
// one or more chunk rows, opening each chunk's blob only when it is
// reached and seeking to the requested offset within it before each read.
type rangeReader struct {
	conn      *sqlite.Conn
	rowIDs    []int64
	ordinals  []int64
	chunkSize int64
	offset    int64 // absolute offset of the next unread byte
	remaining int64

	current      *sqlite.Blob
	currentStart int64 // absolute offset of current blob's first byte
	index        int
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if r.current == nil {
		if r.index >= len(r.rowIDs) {
			return 0, io.EOF
		}
		blob, err := r.conn.OpenBlob("main", "chunks", "payload", r.rowIDs[r.index], false)
		if err != nil {
			return 0, vfserr.Newf(vfserr.Storage, "read range: opening chunk: %w", err)
		}
		r.current = blob
		r.currentStart = r.ordinals[r.index] * r.chunkSize
	}

	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}

	withinChunk := r.offset - r.currentStart
	if _, err := r.current.Seek(withinChunk, io.SeekStart); err != nil {
		return 0, vfserr.Newf(vfserr.Storage, "read range: seeking chunk: %w", err)
	}
	n, err := r.current.Read(p)
	r.offset += int64(n)
	r.remaining -= int64(n)

	if err == io.EOF || r.current.Size() <= withinChunk+int64(n) || r.remaining == 0 {
		r.current.Close()
		r.current = nil
		r.index++
		err = nil
		if r.remaining == 0 {
			err = io.EOF
		}
	}
	return n, err
}

// FindSink receives each matching path during Find. Returning a
// non-nil error stops enumeration early and propagates the error to
// Find's caller.
type FindSink func(path string) error

// Find enumerates every files row whose path matches pattern (or
// every row, when pattern is ""), invoking sink once per match, and
// returns the number of matches. Matching is performed in-process via
// lib/globmatch after retrieving every path, rather than pushed down
// to SQL: SQLite's native GLOB supports character classes that this
// package's pattern language deliberately excludes.
func Find(conn *sqlite.Conn, pattern string, sink FindSink) (int, error) {
	matchAll := pattern == ""

	count := 0
	var sinkErr error
	execErr := sqlitex.Execute(conn, store.FindAllSQL, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if sinkErr != nil {
				return nil
			}
			path := stmt.ColumnText(0)
			if !matchAll && !globmatch.Match(pattern, path) {
				return nil
			}
			count++
			if err := sink(path); err != nil {
				sinkErr = err
			}
			return nil
		},
	})
	if execErr != nil {
		return 0, store.WrapStorage("find: querying files: %w", execErr)
	}
	if sinkErr != nil {
		return count, sinkErr
	}
	return count, nil
}
