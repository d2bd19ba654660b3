package sqlplugin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"budgeting-desktop/shell"
)

var (
	ErrNotInitialized      = errors.New("sql plugin is not initialized")
	ErrDatabaseNotLoaded   = errors.New("database not loaded")
	ErrUnsupportedDatatype = errors.New("unsupported datatype")
)

// ExecuteResult is returned by Execute
type ExecuteResult struct {
	RowsAffected int64 `json:"rowsAffected"`
	LastInsertID int64 `json:"lastInsertId"`
}

type instance struct {
	db      *sql.DB
	dialect dialect
}

// SQL is bound to the front end. Every exported method is callable from JavaScript
// as window.go.sqlplugin.SQL.<Method>.
type SQL struct {
	mu         sync.RWMutex
	instances  map[string]*instance
	migrations map[string][]Migration
	host       *shell.PluginContext
	driver     string
	breakers   map[string]*gobreaker.CircuitBreaker // per remote url
	opening    singleflight.Group
}

func newSQL(migrations map[string][]Migration) *SQL {
	return &SQL{
		instances:  make(map[string]*instance),
		migrations: migrations,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (s *SQL) attach(pc *shell.PluginContext, driver string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = pc
	s.driver = driver
}

// authorize returns the host context once perm ("allow-load", ...) is granted
func (s *SQL) authorize(perm string) (*shell.PluginContext, error) {
	s.mu.RLock()
	pc := s.host
	s.mu.RUnlock()

	if pc == nil {
		return nil, ErrNotInitialized
	}
	if err := pc.Require(perm); err != nil {
		return nil, err
	}
	return pc, nil
}

// Load opens the database at db (running any pending migrations) and returns the handle.
// Loading an already open database is a no-op.
func (s *SQL) Load(db string) (string, error) {
	pc, err := s.authorize("allow-load")
	if err != nil {
		return "", err
	}
	return s.load(pc.Ctx, db)
}

func (s *SQL) load(ctx context.Context, dbURL string) (string, error) {
	if s.loaded(dbURL) {
		return dbURL, nil
	}

	// concurrent Loads of one url share a single open and migration run
	_, err, _ := s.opening.Do(dbURL, func() (interface{}, error) {
		return nil, s.open(ctx, dbURL)
	})
	if err != nil {
		return "", err
	}
	return dbURL, nil
}

func (s *SQL) loaded(dbURL string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.instances[dbURL]
	return ok
}

func (s *SQL) open(ctx context.Context, dbURL string) error {
	if s.loaded(dbURL) {
		return nil
	}

	s.mu.RLock()
	pc := s.host
	driver := s.driver
	s.mu.RUnlock()

	t, err := parseURL(dbURL, pc.ConfigDir, driver)
	if err != nil {
		return err
	}

	conn, err := sql.Open(t.driver, t.dsn)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	if t.dialect == dialectSQLite {
		// one connection keeps :memory: databases and PRAGMAs stable
		conn.SetMaxOpenConns(1)
	}

	if err := s.ping(ctx, dbURL, conn, t.dialect); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to %s: %w", redact(dbURL), err)
	}

	if t.path != "" {
		// Enable WAL mode for better concurrent access
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			pc.Logger.Warn().Err(err).Str("db", dbURL).Msg("failed to enable WAL mode")
		}
	}

	if ms := s.migrations[dbURL]; len(ms) > 0 {
		applied, err := applyMigrations(ctx, conn, t.dialect, ms)
		if err != nil {
			conn.Close()
			return fmt.Errorf("migration failed for %s: %w", redact(dbURL), err)
		}
		if applied > 0 {
			pc.Logger.Info().Str("db", redact(dbURL)).Int("applied", applied).Msg("applied migrations")
		}
	}

	s.mu.Lock()
	s.instances[dbURL] = &instance{db: conn, dialect: t.dialect}
	s.mu.Unlock()

	pc.Logger.Info().Str("db", redact(dbURL)).Str("dialect", t.dialect.String()).Msg("database loaded")
	pc.Emitter.Emit("sql://loaded", dbURL)
	return nil
}

// breaker returns the circuit breaker guarding connects to dbURL
func (s *SQL) breaker(dbURL string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.breakers[dbURL]
	if !ok {
		cb = newBreaker(redact(dbURL))
		s.breakers[dbURL] = cb
	}
	return cb
}

func (s *SQL) ping(ctx context.Context, dbURL string, conn *sql.DB, d dialect) error {
	if !d.remote() {
		return conn.PingContext(ctx)
	}
	_, err := s.breaker(dbURL).Execute(func() (interface{}, error) {
		return nil, conn.PingContext(ctx)
	})
	return err
}

func (s *SQL) get(dbURL string) (*instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[dbURL]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotLoaded, redact(dbURL))
	}
	return inst, nil
}

// Execute runs a statement that returns no rows
func (s *SQL) Execute(db string, query string, values []interface{}) (ExecuteResult, error) {
	pc, err := s.authorize("allow-execute")
	if err != nil {
		return ExecuteResult{}, err
	}
	inst, err := s.get(db)
	if err != nil {
		return ExecuteResult{}, err
	}
	args, err := bindValues(values)
	if err != nil {
		return ExecuteResult{}, err
	}

	res, err := inst.db.ExecContext(pc.Ctx, query, args...)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("execute failed: %w", err)
	}

	var out ExecuteResult
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	// postgres has no last insert id; callers use RETURNING instead
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

// Select runs a query and returns its rows as column -> value maps
func (s *SQL) Select(db string, query string, values []interface{}) ([]map[string]interface{}, error) {
	pc, err := s.authorize("allow-select")
	if err != nil {
		return nil, err
	}
	inst, err := s.get(db)
	if err != nil {
		return nil, err
	}
	args, err := bindValues(values)
	if err != nil {
		return nil, err
	}

	rows, err := inst.db.QueryContext(pc.Ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select failed: %w", err)
	}
	defer rows.Close()

	return decodeRows(rows)
}

// Close closes db, or every open database when db is nil
func (s *SQL) Close(db *string) (bool, error) {
	pc, err := s.authorize("allow-close")
	if err != nil {
		return false, err
	}

	if db == nil {
		s.closeAll()
		return true, nil
	}

	s.mu.Lock()
	inst, ok := s.instances[*db]
	delete(s.instances, *db)
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDatabaseNotLoaded, redact(*db))
	}

	if err := inst.db.Close(); err != nil {
		return false, fmt.Errorf("failed to close db: %w", err)
	}
	pc.Emitter.Emit("sql://closed", *db)
	return true, nil
}

func (s *SQL) closeAll() {
	s.mu.Lock()
	instances := s.instances
	s.instances = make(map[string]*instance)
	pc := s.host
	s.mu.Unlock()

	for url, inst := range instances {
		if err := inst.db.Close(); err != nil && pc != nil {
			pc.Logger.Error().Err(err).Str("db", redact(url)).Msg("failed to close db")
			continue
		}
		if pc != nil {
			pc.Emitter.Emit("sql://closed", url)
		}
	}
}
