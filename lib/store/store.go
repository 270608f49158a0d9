// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/matryoshka-fs/matryoshka/lib/vfserr"
)

// InMemoryPath is the sentinel container location that requests an
// ephemeral in-memory container whose lifetime equals the owning
// Store.
const InMemoryPath = ":memory:"

// schemaStatements creates the files/chunks schema. CREATE TABLE IF
// NOT EXISTS makes Open idempotent: a schema created by an earlier
// Open on the same file is accepted verbatim, never recreated.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT UNIQUE NOT NULL,
		chunk_size INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (file_id, ordinal)
	)`,
}

// connectionPragmas are applied to every connection this package
// opens. foreign_keys is ON: the chunks table's ON DELETE CASCADE is
// how Delete removes a file's chunks, and that constraint is inert
// unless foreign key enforcement is on.
//
// journal_mode=WAL is requested separately in Open, since it is
// meaningless (and occasionally rejected) for an in-memory container.
var connectionPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Core statement texts shared with lib/chunk. They live here, rather
// than as unexported constants next to their call sites, so Open can
// precompile and cache every one of them against a connection before
// lib/chunk ever issues them for real.
const (
	InsertFileSQL         = `INSERT INTO files (path, chunk_size) VALUES (?, ?)`
	SelectFileSQL         = `SELECT id, chunk_size FROM files WHERE path = ?`
	SelectByIDSQL         = `SELECT chunk_size FROM files WHERE id = ?`
	InsertChunkSQL        = `INSERT INTO chunks (file_id, ordinal, payload) VALUES (?, ?, ?)`
	SizeSQL               = `SELECT COALESCE(SUM(LENGTH(payload)), 0) FROM chunks WHERE file_id = ?`
	DeleteFileSQL         = `DELETE FROM files WHERE id = ?`
	SelectOrdinalSQL      = `SELECT rowid, ordinal FROM chunks WHERE file_id = ? ORDER BY ordinal ASC`
	FindAllSQL            = `SELECT path FROM files`
	SelectOrdinalRangeSQL = `SELECT rowid, ordinal FROM chunks
		WHERE file_id = ? AND ordinal BETWEEN ? AND ?
		ORDER BY ordinal ASC`
)

// CoreStatements lists every statement lib/chunk issues on the hot
// path. Open precompiles each of them once per connection so the
// first real Push/Open/Pull/Find/Delete/GetSize call doesn't pay
// statement-compile cost.
var CoreStatements = []string{
	InsertFileSQL,
	SelectFileSQL,
	SelectByIDSQL,
	InsertChunkSQL,
	SizeSQL,
	DeleteFileSQL,
	SelectOrdinalSQL,
	FindAllSQL,
	SelectOrdinalRangeSQL,
}

// Store owns a single SQLite connection bound to one container.
//
// Store itself does not serialize access — that is lib/vfs's job.
// Store is safe to use from one goroutine at a time only.
type Store struct {
	conn   *sqlite.Conn
	logger *slog.Logger
	path   string
}

// Open opens or creates the container at path (or an in-memory
// container for [InMemoryPath]), applies the standard pragmas, and
// ensures the schema exists. If logger is nil, operations are not
// logged.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, vfserr.Newf(vfserr.InvalidArgument, "store: container path must not be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, vfserr.Newf(vfserr.Storage, "store: opening %s: %w", path, err)
	}

	pragmas := connectionPragmas
	if path != InMemoryPath {
		// Write-ahead logging only helps a file-backed container; an
		// in-memory connection has no separate WAL file to speak of.
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			conn.Close()
			return nil, vfserr.Newf(vfserr.Storage, "store: %s: %w", pragma, err)
		}
	}

	for _, statement := range schemaStatements {
		if err := sqlitex.ExecuteTransient(conn, statement, nil); err != nil {
			conn.Close()
			return nil, vfserr.Newf(vfserr.Storage, "store: creating schema: %w", err)
		}
	}

	// Prep caches each statement on conn keyed by its SQL text, so the
	// cache sqlitex.Execute consults later already holds a compiled
	// statement for every one of these when lib/chunk issues them.
	for _, statement := range CoreStatements {
		conn.Prep(statement)
	}

	logger.Info("container opened", "path", path)

	return &Store{conn: conn, logger: logger, path: path}, nil
}

// Conn returns the underlying connection for lib/chunk's parameterized
// queries and blob I/O. The returned connection must not be closed by
// the caller; call [Store.Close] instead.
func (s *Store) Conn() *sqlite.Conn { return s.conn }

// Logger returns the logger this Store was opened with.
func (s *Store) Logger() *slog.Logger { return s.logger }

// Path returns the container location this Store was opened with.
func (s *Store) Path() string { return s.path }

// Close closes the backing connection. After Close, the Store must
// not be used.
func (s *Store) Close() error {
	if err := s.conn.Close(); err != nil {
		return vfserr.Newf(vfserr.Storage, "store: closing %s: %w", s.path, err)
	}
	s.logger.Info("container closed", "path", s.path)
	return nil
}

// Transact runs fn inside an immediate transaction. If fn returns an
// error (or panics), the transaction is rolled back and the error
// propagates unchanged; otherwise it is committed. This is how Push
// keeps a file's row and all of its chunk rows atomic.
func Transact(conn *sqlite.Conn, fn func() error) (err error) {
	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return vfserr.Newf(vfserr.Storage, "store: beginning transaction: %w", err)
	}
	defer endTransaction(&err)

	return fn()
}

// ErrConstraint reports whether err (as returned by sqlitex/zombiezen
// calls) is a SQLite constraint-violation failure, the signal Push
// uses to detect a duplicate path and fail with AlreadyExists.
func ErrConstraint(err error) bool {
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintUnique, sqlite.ResultConstraintPrimaryKey, sqlite.ResultConstraint:
		return true
	default:
		return false
	}
}

// WrapStorage wraps a non-nil backing-store error with the generic
// storage Kind, unless it is already classified.
func WrapStorage(format string, err error) error {
	if err == nil {
		return nil
	}
	if vfserr.KindOf(err) != vfserr.Unknown {
		return err
	}
	return vfserr.New(vfserr.Storage, fmt.Errorf(format, err))
}
