package storage

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect captures the few places where SQLite, Postgres and MySQL differ.
type dialect struct {
	name       string // config name
	driver     string // database/sql driver name
	numbered   bool   // $1, $2 placeholders instead of ?
	textType   string
	timeType   string
	indexGuard bool // supports CREATE INDEX IF NOT EXISTS
}

var dialects = map[string]dialect{
	"sqlite": {
		name: "sqlite", driver: "sqlite",
		textType: "TEXT", timeType: "DATETIME", indexGuard: true,
	},
	"postgres": {
		name: "postgres", driver: "postgres", numbered: true,
		textType: "TEXT", timeType: "TIMESTAMPTZ", indexGuard: true,
	},
	"mysql": {
		name: "mysql", driver: "mysql",
		textType: "MEDIUMTEXT", timeType: "DATETIME(6)",
	},
}

func lookupDialect(name string) (dialect, error) {
	d, ok := dialects[name]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported storage driver: %s", name)
	}
	return d, nil
}

// rebind rewrites ? placeholders for dialects with numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// upsert returns the conflict clause that turns an INSERT into an
// insert-or-update keyed on the primary key.
func (d dialect) upsert(key string, cols []string) string {
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == key {
			continue
		}
		if d.name == "mysql" {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	if d.name == "mysql" {
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
}

func (d dialect) createIndex(name, table, cols string) string {
	if d.indexGuard {
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", name, table, cols)
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s(%s)", name, table, cols)
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
