/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package replication is the dump + sync140 backend (spec.md §6, LINK
// commands) plus offsite archival of dump snapshots and reclaimed binlog
// segments, adapted from the teacher's storage/persistence-s3.go and
// persistence-ceph.go object-store engines.
package replication

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archive is the object-store contract a dump snapshot or a reclaimed
// binlog segment is handed to. One Store call per named object, mirroring
// the teacher's PersistenceEngine method shape (a schema-scoped read/write
// pair per object) without the SQL-storage-specific column/shard layout
// that interface also carried.
type Archive interface {
	Store(ctx context.Context, name string, r io.Reader) error
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// FileArchive is the default backend: a plain directory on local disk.
// Grounded on the teacher's persistence engines always having a
// non-networked fallback for local development and tests.
type FileArchive struct {
	Dir string
}

func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("replication: creating archive dir: %w", err)
	}
	return &FileArchive{Dir: dir}, nil
}

func (f *FileArchive) Store(ctx context.Context, name string, r io.Reader) error {
	path := filepath.Join(f.Dir, name)
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("replication: creating %s: %w", path, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("replication: writing %s: %w", path, err)
	}
	return nil
}

func (f *FileArchive) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	path := filepath.Join(f.Dir, name)
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replication: opening %s: %w", path, err)
	}
	return fh, nil
}
