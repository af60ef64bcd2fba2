// Package db owns the MySQL connection: it maps the database URL onto a
// driver DSN, applies the resolved TLS policy, executes the single query,
// and materializes the result set lazily into canonical rows.
//
// Multi-statement query text is rejected: the DSN never enables the
// driver's multiStatements option, so the server refuses a second statement
// and the failure surfaces as a query error.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/EvilBit-Labs/gold-digger/internal/exitcode"
	"github.com/EvilBit-Labs/gold-digger/internal/tlspolicy"
)

const (
	defaultPort = "3306"
	pingTimeout = 5 * time.Second
)

// tlsParams are URL query parameters that would steer the driver's TLS
// behavior. The CLI TLS policy always wins over these, so they are stripped
// whenever a non-default policy is in force.
var tlsParams = map[string]bool{
	"tls":      true,
	"ssl-mode": true,
	"ssl_mode": true,
	"ssl-ca":   true,
	"ssl_ca":   true,
}

// DB is an open connection owned by the driver for the lifetime of one
// connect-query-write cycle.
type DB struct {
	sqldb *sql.DB
}

// BuildDSN converts a mysql:// URL into a go-sql-driver DSN, wiring in the
// TLS policy. URL query parameters pass through unchanged, except that TLS
// parameters are overridden by the CLI policy; with the default platform
// policy a tls parameter in the URL (e.g. tls=false) is honored as-is.
func BuildDSN(rawURL string, policy *tlspolicy.Policy) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", exitcode.Config("invalid database URL", err)
	}
	if u.Scheme != "mysql" {
		return "", exitcode.Config(fmt.Sprintf("unsupported database URL scheme %q, expected mysql://", u.Scheme), nil)
	}
	if u.Host == "" {
		return "", exitcode.Config("database URL has no host", nil)
	}

	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			cfg.Passwd = pw
		}
	}

	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, defaultPort)
	}
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")

	params := u.Query()
	urlTLS := params.Get("tls")
	if policy.Mode != tlspolicy.ModePlatform {
		// CLI policy wins; drop the URL's TLS steering.
		for key := range params {
			if tlsParams[strings.ToLower(key)] {
				params.Del(key)
			}
		}
	}

	switch {
	case policy.Mode != tlspolicy.ModePlatform:
		name, err := policy.DriverTLSValue()
		if err != nil {
			return "", err
		}
		cfg.TLSConfig = name
	case urlTLS != "":
		// Platform default with an explicit URL choice: pass it through,
		// including tls=false. This is the only path to cleartext.
		cfg.TLSConfig = urlTLS
		params.Del("tls")
	default:
		name, err := policy.DriverTLSValue()
		if err != nil {
			return "", err
		}
		cfg.TLSConfig = name
	}

	if len(params) > 0 {
		cfg.Params = make(map[string]string, len(params))
		for key := range params {
			cfg.Params[key] = params.Get(key)
		}
	}

	return cfg.FormatDSN(), nil
}

// Open establishes and verifies a connection. The pool is pinned to a single
// connection: the program runs exactly one statement.
func Open(ctx context.Context, rawURL string, policy *tlspolicy.Policy) (*DB, error) {
	dsn, err := BuildDSN(rawURL, policy)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, exitcode.Connection("opening database connection", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		sqldb.Close()
		return nil, exitcode.Connection("connecting to database", err)
	}

	return &DB{sqldb: sqldb}, nil
}

// Close releases the connection.
func (d *DB) Close() error {
	if d.sqldb == nil {
		return nil
	}
	return d.sqldb.Close()
}

// Execute runs the single SQL statement and returns a lazy row source over
// its result set. The caller must Close the returned rows.
func (d *DB) Execute(ctx context.Context, query string) (*Rows, error) {
	rows, err := d.sqldb.QueryContext(ctx, query)
	if err != nil {
		return nil, exitcode.Query("executing query", err)
	}
	return newRows(rows)
}
