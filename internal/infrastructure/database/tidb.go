package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/nexuscrm/formengine/internal/config"
)

// TiDBConnection wraps the registry database pool.
// sql.DB is already safe for concurrent use, so no extra locking is added here.
type TiDBConnection struct {
	db *sql.DB
}

var tlsOnce sync.Once

// isLocal reports whether host is a loopback address that does not need TLS
func isLocal(host string) bool {
	return host == "" || host == "127.0.0.1" || host == "localhost"
}

// DSN builds the MySQL driver DSN. Remote hosts (e.g. TiDB Cloud) use the registered "tidb" TLS profile.
func DSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Params = map[string]string{"charset": "utf8mb4"}
	if !isLocal(cfg.Host) {
		mc.TLSConfig = "tidb"
	}
	return mc.FormatDSN()
}

// Open connects to the registry database and verifies the connection
func Open(ctx context.Context, cfg config.DatabaseConfig) (*TiDBConnection, error) {
	if !isLocal(cfg.Host) {
		var regErr error
		tlsOnce.Do(func() {
			regErr = mysql.RegisterTLSConfig("tidb", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Host,
			})
		})
		if regErr != nil {
			return nil, fmt.Errorf("failed to register TLS config: %w", regErr)
		}
	}

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns matches MaxOpenConns so connections are reused rather than churned
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &TiDBConnection{db: db}, nil
}

// NewFromDB wraps an existing pool (used by tests with sqlmock)
func NewFromDB(db *sql.DB) *TiDBConnection {
	return &TiDBConnection{db: db}
}

// DB returns the underlying *sql.DB
func (c *TiDBConnection) DB() *sql.DB {
	return c.db
}

// Close closes the pool
func (c *TiDBConnection) Close() error {
	return c.db.Close()
}
