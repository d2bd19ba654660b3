package sqlplugin

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeting-desktop/shell"
)

var allPermissions = []string{
	"sql:allow-load",
	"sql:allow-execute",
	"sql:allow-select",
	"sql:allow-close",
}

// recorder captures emitted events
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) emit(event string, data ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func pluginContext(dir string, cfg map[string]interface{}, perms ...string) (*shell.PluginContext, *recorder) {
	v := viper.New()
	for k, val := range cfg {
		v.Set(k, val)
	}
	rec := &recorder{}
	return &shell.PluginContext{
		Ctx:         context.Background(),
		Name:        PluginName,
		Config:      v,
		ConfigDir:   dir,
		Permissions: shell.NewPermissions(perms...),
		Emitter:     shell.EmitterFunc(rec.emit),
		Logger:      zerolog.Nop(),
	}, rec
}

// startPlugin initializes p against dir and shuts it down when the test ends
func startPlugin(t *testing.T, p *Plugin, dir string, cfg map[string]interface{}, perms ...string) *recorder {
	t.Helper()
	pc, rec := pluginContext(dir, cfg, perms...)
	require.NoError(t, p.Initialize(pc))
	t.Cleanup(p.Shutdown)
	return rec
}

func TestLoadExecuteSelectClose(t *testing.T) {
	dir := t.TempDir()
	p := NewBuilder().Build()
	rec := startPlugin(t, p, dir, nil, allPermissions...)
	svc := p.Service()

	db, err := svc.Load("sqlite:budget.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite:budget.db", db)
	assert.FileExists(t, filepath.Join(dir, "budget.db"))

	_, err = svc.Execute(db, `CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		amount REAL NOT NULL,
		note TEXT
	)`, nil)
	require.NoError(t, err)

	res, err := svc.Execute(db,
		"INSERT INTO transactions (category, amount, note) VALUES ($1, $2, $3)",
		[]interface{}{"groceries", 12.5, nil})
	require.NoError(t, err)
	assert.Equal(t, ExecuteResult{RowsAffected: 1, LastInsertID: 1}, res)

	res, err = svc.Execute(db,
		"INSERT INTO transactions (category, amount, note) VALUES (?, ?, ?)",
		[]interface{}{"rent", float64(900), "march"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LastInsertID)

	rows, err := svc.Select(db, "SELECT id, category, amount, note FROM transactions ORDER BY id", []interface{}{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]interface{}{
		"id": int64(1), "category": "groceries", "amount": 12.5, "note": nil,
	}, rows[0])
	assert.Equal(t, "march", rows[1]["note"])
	assert.Equal(t, float64(900), rows[1]["amount"])

	ok, err := svc.Close(&db)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Select(db, "SELECT 1", nil)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)

	assert.Equal(t, []string{"sql://loaded", "sql://closed"}, rec.list())
}

func TestSelectEmptyResultIsNotNil(t *testing.T) {
	p := NewBuilder().Build()
	startPlugin(t, p, t.TempDir(), nil, allPermissions...)
	svc := p.Service()

	db, err := svc.Load("sqlite::memory:")
	require.NoError(t, err)
	_, err = svc.Execute(db, "CREATE TABLE t (x INTEGER)", nil)
	require.NoError(t, err)

	rows, err := svc.Select(db, "SELECT x FROM t", nil)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestPureGoDriver(t *testing.T) {
	p := NewBuilder().Build()
	startPlugin(t, p, t.TempDir(), map[string]interface{}{"sqliteDriver": DriverSQLitePure}, allPermissions...)
	svc := p.Service()

	db, err := svc.Load("sqlite:pure.db")
	require.NoError(t, err)

	_, err = svc.Execute(db, "CREATE TABLE accounts (id INTEGER PRIMARY KEY, name TEXT)", nil)
	require.NoError(t, err)
	_, err = svc.Execute(db, "INSERT INTO accounts (name) VALUES (?)", []interface{}{"checking"})
	require.NoError(t, err)

	rows, err := svc.Select(db, "SELECT id, name FROM accounts", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "checking", rows[0]["name"])
}

func TestLoadIsIdempotent(t *testing.T) {
	p := NewBuilder().Build()
	rec := startPlugin(t, p, t.TempDir(), nil, allPermissions...)
	svc := p.Service()

	_, err := svc.Load("sqlite::memory:")
	require.NoError(t, err)
	_, err = svc.Execute("sqlite::memory:", "CREATE TABLE kept (x INTEGER)", nil)
	require.NoError(t, err)

	_, err = svc.Load("sqlite::memory:")
	require.NoError(t, err)

	// same connection: the table is still there
	_, err = svc.Select("sqlite::memory:", "SELECT x FROM kept", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sql://loaded"}, rec.list())
}

func TestDefaultPermissionsExcludeExecute(t *testing.T) {
	p := NewBuilder().Build()
	startPlugin(t, p, t.TempDir(), nil, p.DefaultPermissions()...)
	svc := p.Service()

	db, err := svc.Load("sqlite::memory:")
	require.NoError(t, err)

	_, err = svc.Execute(db, "CREATE TABLE t (x INTEGER)", nil)
	require.ErrorIs(t, err, shell.ErrPermissionDenied)

	_, err = svc.Select(db, "SELECT 1 AS one", nil)
	require.NoError(t, err)
}

func TestLoadWithoutPermission(t *testing.T) {
	p := NewBuilder().Build()
	startPlugin(t, p, t.TempDir(), nil)

	_, err := p.Service().Load("sqlite::memory:")
	require.ErrorIs(t, err, shell.ErrPermissionDenied)
}

func TestCommandsBeforeInitialize(t *testing.T) {
	svc := NewBuilder().Build().Service()

	_, err := svc.Load("sqlite::memory:")
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = svc.Select("sqlite::memory:", "SELECT 1", nil)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestUnknownHandle(t *testing.T) {
	p := NewBuilder().Build()
	startPlugin(t, p, t.TempDir(), nil, allPermissions...)
	svc := p.Service()

	_, err := svc.Execute("sqlite:nope.db", "SELECT 1", nil)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)

	missing := "sqlite:nope.db"
	ok, err := svc.Close(&missing)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)
	assert.False(t, ok)
}

func TestCloseAll(t *testing.T) {
	p := NewBuilder().Build()
	rec := startPlugin(t, p, t.TempDir(), nil, allPermissions...)
	svc := p.Service()

	_, err := svc.Load("sqlite:a.db")
	require.NoError(t, err)
	_, err = svc.Load("sqlite:b.db")
	require.NoError(t, err)

	ok, err := svc.Close(nil)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Select("sqlite:a.db", "SELECT 1", nil)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)
	_, err = svc.Select("sqlite:b.db", "SELECT 1", nil)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)

	assert.ElementsMatch(t, []string{"sql://loaded", "sql://loaded", "sql://closed", "sql://closed"}, rec.list())
}

func TestPreload(t *testing.T) {
	p := NewBuilder().Build()
	startPlugin(t, p, t.TempDir(), map[string]interface{}{
		"preload": []string{"sqlite:budget.db"},
	}, "sql:allow-select")

	rows, err := p.Service().Select("sqlite:budget.db", "SELECT 1 AS one", nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{{"one": int64(1)}}, rows)
}

func TestInitializeErrors(t *testing.T) {
	pc, _ := pluginContext(t.TempDir(), map[string]interface{}{"sqliteDriver": "duckdb"})
	require.ErrorContains(t, NewBuilder().Build().Initialize(pc), "unsupported sqliteDriver")

	p := NewBuilder().Build()
	pc, _ = pluginContext(t.TempDir(), map[string]interface{}{"preload": []string{"oracle://db"}})
	require.ErrorIs(t, p.Initialize(pc), ErrInvalidDBURL)
	p.Shutdown()
}

func TestShutdownClosesDatabases(t *testing.T) {
	p := NewBuilder().Build()
	pc, rec := pluginContext(t.TempDir(), nil, allPermissions...)
	require.NoError(t, p.Initialize(pc))

	_, err := p.Service().Load("sqlite:budget.db")
	require.NoError(t, err)

	p.Shutdown()

	_, err = p.Service().Select("sqlite:budget.db", "SELECT 1", nil)
	require.ErrorIs(t, err, ErrDatabaseNotLoaded)
	assert.Equal(t, []string{"sql://loaded", "sql://closed"}, rec.list())
}

func TestBlobAndTimeDecoding(t *testing.T) {
	p := NewBuilder().Build()
	startPlugin(t, p, t.TempDir(), nil, allPermissions...)
	svc := p.Service()

	db, err := svc.Load("sqlite::memory:")
	require.NoError(t, err)
	_, err = svc.Execute(db, "CREATE TABLE files (data BLOB, created_at DATETIME)", nil)
	require.NoError(t, err)
	_, err = svc.Execute(db, "INSERT INTO files VALUES (X'0001FF', '2024-03-01 10:00:00')", nil)
	require.NoError(t, err)

	rows, err := svc.Select(db, "SELECT data, created_at FROM files", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []int{0, 1, 255}, rows[0]["data"])
	assert.Equal(t, "2024-03-01T10:00:00Z", rows[0]["created_at"])
}

func TestLoadPathWithURICharacters(t *testing.T) {
	for _, driver := range []string{DriverSQLite3, DriverSQLitePure} {
		t.Run(driver, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "a?b#c%41")
			db := "sqlite:" + filepath.Join(dir, "budget.db")

			p := NewBuilder().Build()
			startPlugin(t, p, t.TempDir(), map[string]interface{}{"sqliteDriver": driver}, allPermissions...)
			svc := p.Service()

			_, err := svc.Load(db)
			require.NoError(t, err)
			_, err = svc.Execute(db, "CREATE TABLE t (x INTEGER)", nil)
			require.NoError(t, err)

			assert.FileExists(t, filepath.Join(dir, "budget.db"))
		})
	}
}
