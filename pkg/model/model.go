// Package model holds the helpers table-defining packages build on: table
// existence checks and creation, and column codecs for JSON and enum
// values. The ORM proper lives outside this library; these are the pieces
// of the boundary every table package needs.
package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/aperture-array/obsdb/pkg/logx"
)

// Table - a relational table this library can check for or create. The DDL
// is the table package's responsibility and must suit the backend it will
// run against.
type Table interface {
	TableName() string
	CreateSQL() string
}

// CheckTables - report which of the given tables are missing, probing each
// with a no-op select. A table whose probe fails for any reason is counted
// missing.
func CheckTables(ctx context.Context, db *sql.DB, tables ...Table) ([]string, error) {
	if db == nil {
		return nil, errors.New("check tables: nil database handle")
	}

	var missing []string

	for _, t := range tables {
		var one int

		err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", t.TableName())).Scan(&one)
		if err != nil && err != sql.ErrNoRows {
			missing = append(missing, t.TableName())
		}
	}

	return missing, nil
}

// EnsureTables - create every missing table from its CreateSQL.
func EnsureTables(ctx context.Context, db *sql.DB, tables ...Table) error {
	missing, err := CheckTables(ctx, db, tables...)
	if err != nil {
		return err
	}

	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		byName[t.TableName()] = t
	}

	for _, name := range missing {
		if _, err := db.ExecContext(ctx, byName[name].CreateSQL()); err != nil {
			return errors.Wrapf(err, "creating table %s", name)
		}

		logx.GetLogger().LogInfo(ctx, fmt.Sprintf("created table %s", name))
	}

	return nil
}
