package model_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperture-array/obsdb/pkg/model"
)

type acquisitionTable struct{}

func (acquisitionTable) TableName() string { return "acquisition" }

func (acquisitionTable) CreateSQL() string {
	return "CREATE TABLE acquisition (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"
}

type datasetTable struct{}

func (datasetTable) TableName() string { return "dataset" }

func (datasetTable) CreateSQL() string {
	return "CREATE TABLE dataset (id INTEGER PRIMARY KEY, meta TEXT)"
}

func openStore(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestCheckTables(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)

	missing, err := model.CheckTables(ctx, db, acquisitionTable{}, datasetTable{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acquisition", "dataset"}, missing)

	_, err = db.ExecContext(ctx, acquisitionTable{}.CreateSQL())
	require.NoError(t, err)

	missing, err = model.CheckTables(ctx, db, acquisitionTable{}, datasetTable{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dataset"}, missing)
}

func TestCheckTablesNilHandle(t *testing.T) {
	_, err := model.CheckTables(context.Background(), nil, acquisitionTable{})
	assert.Error(t, err)
}

func TestEnsureTables(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)

	require.NoError(t, model.EnsureTables(ctx, db, acquisitionTable{}, datasetTable{}))

	missing, err := model.CheckTables(ctx, db, acquisitionTable{}, datasetTable{})
	require.NoError(t, err)
	assert.Empty(t, missing)

	// Existing tables survive a second pass untouched.
	_, err = db.ExecContext(ctx, "INSERT INTO acquisition (name) VALUES ('20260821T000000Z_main')")
	require.NoError(t, err)

	require.NoError(t, model.EnsureTables(ctx, db, acquisitionTable{}, datasetTable{}))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT count(*) FROM acquisition").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestJSONDictRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)

	require.NoError(t, model.EnsureTables(ctx, db, datasetTable{}))

	in := model.JSONDict{"band": "700MHz", "nfreq": float64(1024)}

	_, err := db.ExecContext(ctx, "INSERT INTO dataset (id, meta) VALUES (1, ?)", in)
	require.NoError(t, err)

	var out model.JSONDict
	require.NoError(t, db.QueryRowContext(ctx, "SELECT meta FROM dataset WHERE id = 1").Scan(&out))
	assert.Equal(t, in, out)
}

func TestJSONDictNull(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)

	require.NoError(t, model.EnsureTables(ctx, db, datasetTable{}))

	_, err := db.ExecContext(ctx, "INSERT INTO dataset (id, meta) VALUES (1, ?)", model.JSONDict(nil))
	require.NoError(t, err)

	out := model.JSONDict{"stale": true}
	require.NoError(t, db.QueryRowContext(ctx, "SELECT meta FROM dataset WHERE id = 1").Scan(&out))
	assert.Nil(t, out)
}

func TestJSONDictScanMalformed(t *testing.T) {
	var d model.JSONDict

	err := d.Scan("{not json")
	assert.Error(t, err)

	err = d.Scan(42)
	assert.Error(t, err)
}

func TestStringEnum(t *testing.T) {
	enum := model.NewStringEnum("raw", "calibrated", "flagged")

	assert.Equal(t, []string{"raw", "calibrated", "flagged"}, enum.Values())

	assert.NoError(t, enum.Check("raw"))
	assert.Error(t, enum.Check("deleted"))

	assert.Equal(t, "ENUM('raw','calibrated','flagged')", enum.ColumnDDL("mysql"))
	assert.Equal(t, "TEXT", enum.ColumnDDL("sqlite"))
	assert.Equal(t, "TEXT", enum.ColumnDDL("postgres"))
}
