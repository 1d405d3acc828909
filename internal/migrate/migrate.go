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

// Package migrate implements migrate_import (spec.md §6, supplemented from
// the original's migrate_hset / src/ssdb/t_hash.cpp and the teacher's
// storage/mysql_import.go): stream rows out of an external MySQL or
// Postgres table straight into packed-hash form via Store.MigrateHSet,
// bypassing the read-then-diff path a plain multi_hset importer would take.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/launix-de/packdb/internal/command"
	"github.com/launix-de/packdb/internal/hashkv"
	"github.com/launix-de/packdb/internal/proto"
	"github.com/launix-de/packdb/internal/store"
)

// Driver names the two source databases migrate_import accepts, matching
// the two blank-imported sql/driver implementations above.
type Driver string

const (
	MySQL    Driver = "mysql"
	Postgres Driver = "postgres"
)

// rowBatchSize is the number of buffered field entries (not source rows)
// that triggers one MigrateHSet call, the same "batch the merge operand, don't merge field
// by field" idea t_hash.cpp's migrate_hset and Store.MultiHSet both apply.
const rowBatchSize = 1000

// Import streams every row of source (a fully qualified "table" or
// "schema.table" reference, passed through to the driver unescaped since
// it is an admin-only, loopback-gated command) into target's packed hash.
// Each source cell becomes one packed field, keyed by
// row*len(columns)+column (both zero-based); values are parsed as integers since the packed-hash domain
// (spec.md §3) only carries int16 values per field — a column that
// doesn't parse as an integer is skipped rather than aborting the whole
// import, consistent with the original's best-effort bulk loader.
func Import(ctx context.Context, s *store.Store, driver Driver, dsn, source, target string) (int, error) {
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return 0, fmt.Errorf("migrate: opening %s source: %w", driver, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", source))
	if err != nil {
		return 0, fmt.Errorf("migrate: querying %s: %w", source, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("migrate: reading columns of %s: %w", source, err)
	}

	imported := 0
	rowNum := int16(0)
	batch := make([]hashkv.Entry, 0, rowBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.MigrateHSet(target, batch); err != nil {
			return fmt.Errorf("migrate: writing batch to %s: %w", target, err)
		}
		batch = batch[:0]
		return nil
	}

	scanArgs := make([]any, len(cols))
	scanVals := make([]sql.RawBytes, len(cols))
	for i := range scanVals {
		scanArgs[i] = &scanVals[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return imported, fmt.Errorf("migrate: scanning row %d of %s: %w", rowNum, source, err)
		}
		for col, raw := range scanVals {
			n, perr := strconv.ParseInt(string(raw), 10, 16)
			if perr != nil {
				continue // non-integer column: not representable in this domain
			}
			field := rowNum*int16(len(cols)) + int16(col)
			batch = append(batch, hashkv.Entry{Field: field, Value: int16(n)})
		}
		if len(batch) >= rowBatchSize {
			if err := flush(); err != nil {
				return imported, err
			}
		}
		imported++
		rowNum++
	}
	if err := rows.Err(); err != nil {
		return imported, fmt.Errorf("migrate: iterating %s: %w", source, err)
	}
	if err := flush(); err != nil {
		return imported, err
	}
	return imported, nil
}

// Register installs migrate_import: "migrate_import <driver> <dsn>
// <source> <target>" (spec.md §6). Like compact/clear_binlog it is a
// WRITE|BLOCK|THREAD command: it runs on the worker pool under the
// G-lock's exclusive side (it issues a batch of writes against the live
// store) rather than as a LINK handoff, since it never needs to own the
// connection itself.
func Register(table *command.Table, s *store.Store) {
	table.SetProc("migrate_import", "wbt", func(req proto.Request) proto.Response {
		if len(req) < 5 {
			return proto.ClientError("migrate_import requires driver, dsn, source, target")
		}
		driver := Driver(string(req[1]))
		dsn := string(req[2])
		source := string(req[3])
		target := string(req[4])
		n, err := Import(context.Background(), s, driver, dsn, source, target)
		if err != nil {
			return proto.Error(err.Error())
		}
		return proto.OK(strconv.Itoa(n))
	})
}
