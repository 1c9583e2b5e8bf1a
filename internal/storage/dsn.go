package storage

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Options selects and addresses the backing SQL database. DSN, when set,
// is passed to the driver untouched; otherwise one is built from the
// discrete fields.
type Options struct {
	Driver   string // sqlite | postgres | mysql
	DSN      string
	Path     string // sqlite file
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

func (o Options) driverName() string {
	if o.Driver == "" {
		return "sqlite"
	}
	return o.Driver
}

func (o Options) dsn() (string, error) {
	if o.DSN != "" {
		return o.DSN, nil
	}
	switch o.driverName() {
	case "sqlite":
		return buildSQLiteDSN(o.Path), nil
	case "postgres":
		return buildPostgresDSN(o), nil
	case "mysql":
		return buildMySQLDSN(o), nil
	}
	return "", fmt.Errorf("unsupported storage driver: %s", o.Driver)
}

func buildSQLiteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

func buildPostgresDSN(o Options) string {
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.Username, o.Password),
		Host:     o.Host + ":" + strconv.Itoa(port),
		Path:     "/" + o.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

func buildMySQLDSN(o Options) string {
	port := o.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = o.Username
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", o.Host, port)
	cfg.DBName = o.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if o.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
