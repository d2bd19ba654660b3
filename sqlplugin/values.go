package sqlplugin

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// bindValues converts JSON-decoded front-end values into driver arguments.
// Integral numbers become int64; arrays and objects are bound as JSON text.
func bindValues(values []interface{}) ([]interface{}, error) {
	args := make([]interface{}, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil, string, bool, int64, []byte:
			args[i] = val
		case int:
			args[i] = int64(val)
		case float64:
			if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
				args[i] = int64(val)
			} else {
				args[i] = val
			}
		case json.Number:
			if n, err := val.Int64(); err == nil {
				args[i] = n
			} else if f, err := val.Float64(); err == nil {
				args[i] = f
			} else {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
		case []interface{}, map[string]interface{}:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			args[i] = string(b)
		default:
			return nil, fmt.Errorf("value %d: %w: %T", i, ErrUnsupportedDatatype, v)
		}
	}
	return args, nil
}

// decodeRows reads every row into a column -> value map
func decodeRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := []map[string]interface{}{}
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col.Name()] = decodeValue(raw[i], col.DatabaseTypeName())
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// decodeValue maps a scanned value to something the JSON bridge can carry
func decodeValue(v interface{}, dbType string) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		return decodeBytes(val, strings.ToUpper(dbType))
	default:
		return val
	}
}

func decodeBytes(b []byte, dbType string) interface{} {
	switch {
	case isBinaryType(dbType) || !utf8.Valid(b):
		out := make([]int, len(b))
		for i, c := range b {
			out[i] = int(c)
		}
		return out
	case isIntegerType(dbType):
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	case isFloatType(dbType):
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	}
	return string(b)
}

func isBinaryType(t string) bool {
	return strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY") || t == "BYTEA"
}

func isIntegerType(t string) bool {
	switch strings.TrimPrefix(t, "UNSIGNED ") {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		return true
	}
	return false
}

func isFloatType(t string) bool {
	switch t {
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC":
		return true
	}
	return false
}
