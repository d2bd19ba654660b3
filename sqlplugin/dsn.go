package sqlplugin

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// SQLite driver names accepted by plugins.sql.sqliteDriver
const (
	DriverSQLite3    = "sqlite3" // cgo
	DriverSQLitePure = "sqlite"  // pure Go
)

const (
	driverPostgres = "pgx"
	driverMySQL    = "mysql"

	memoryDB = ":memory:"
)

var ErrInvalidDBURL = errors.New("invalid database url")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
	dialectMySQL
)

func (d dialect) String() string {
	switch d {
	case dialectPostgres:
		return "postgres"
	case dialectMySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// remote reports whether connecting may hit the network
func (d dialect) remote() bool {
	return d != dialectSQLite
}

// target is a parsed connection URL
type target struct {
	driver  string
	dsn     string
	dialect dialect
	path    string // sqlite file path, empty for remote and in-memory databases
}

// parseURL turns a front-end connection URL into a driver name and DSN.
// Relative sqlite paths are resolved against configDir.
func parseURL(raw, configDir, sqliteDriver string) (target, error) {
	switch {
	case strings.HasPrefix(raw, "sqlite:"):
		return parseSQLite(strings.TrimPrefix(raw, "sqlite:"), configDir, sqliteDriver)
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		if _, err := url.Parse(raw); err != nil {
			return target{}, fmt.Errorf("%w: %v", ErrInvalidDBURL, err)
		}
		return target{driver: driverPostgres, dsn: raw, dialect: dialectPostgres}, nil
	case strings.HasPrefix(raw, "mysql://"):
		return parseMySQL(raw)
	default:
		return target{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidDBURL, redact(raw))
	}
}

func parseSQLite(path, configDir, driver string) (target, error) {
	path = strings.TrimPrefix(path, "//")
	if path == "" {
		return target{}, fmt.Errorf("%w: sqlite path is empty", ErrInvalidDBURL)
	}

	if path == memoryDB {
		return target{driver: driver, dsn: memoryDB, dialect: dialectSQLite}, nil
	}

	if !filepath.IsAbs(path) {
		if configDir == "" {
			return target{}, fmt.Errorf("%w: relative sqlite path %q without a config directory", ErrInvalidDBURL, path)
		}
		path = filepath.Join(configDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return target{}, fmt.Errorf("failed to create database directory: %w", err)
	}

	var params string
	if driver == DriverSQLitePure {
		params = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	} else {
		params = "_foreign_keys=on&_busy_timeout=5000"
	}

	return target{
		driver:  driver,
		dsn:     fileURI(path, params),
		dialect: dialectSQLite,
		path:    path,
	}, nil
}

// uriEscaper escapes the characters SQLite's URI parser treats as syntax in a path
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func fileURI(path, params string) string {
	return "file:" + uriEscaper.Replace(filepath.ToSlash(path)) + "?" + params
}

func parseMySQL(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("%w: %v", ErrInvalidDBURL, err)
	}
	if u.Hostname() == "" {
		return target{}, fmt.Errorf("%w: mysql host is empty", ErrInvalidDBURL)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if q := u.Query(); len(q) > 0 {
		cfg.Params = make(map[string]string, len(q))
		for k, v := range q {
			cfg.Params[k] = v[0]
		}
	}

	return target{driver: driverMySQL, dsn: cfg.FormatDSN(), dialect: dialectMySQL}, nil
}

// redact hides the password of a connection URL for logs and errors
func redact(raw string) string {
	if strings.HasPrefix(raw, "sqlite:") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}
