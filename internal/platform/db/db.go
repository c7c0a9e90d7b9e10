package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DSN builds the driver specific data source name.
func DSN(c DatabaseConfig) (string, error) {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mc.DBName = c.DBName
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Timeout = 3 * time.Second
		mc.ReadTimeout = 5 * time.Second
		mc.WriteTimeout = 5 * time.Second
		return mc.FormatDSN(), nil
	case DriverPostgres:
		// 認証情報に記号が入っても壊れないよう url.URL で組み立てる
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:     "/" + c.DBName,
			RawQuery: url.Values{"sslmode": {"disable"}, "timezone": {"UTC"}}.Encode(),
		}
		return u.String(), nil
	case DriverSQLite:
		// _txlock=immediate: 書き込みTxは BEGIN IMMEDIATE で直列化する
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL&_txlock=immediate", c.Path), nil
	default:
		return "", fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

func Connect(ctx context.Context, c DatabaseConfig) (*sqlx.DB, error) {
	if c.Driver == DriverSQLite {
		if dir := filepath.Dir(c.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	dsn, err := DSN(c)
	if err != nil {
		return nil, err
	}
	conn, err := sqlx.Open(c.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Driver, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", c.Driver, err)
	}

	switch c.Driver {
	case DriverSQLite:
		// SQLite は単一ライタ。接続を増やしても BUSY 待ちが増えるだけ
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(4)
	default:
		// 接続プール（合算がサーバの max_connections を超えないよう配分する）
		conn.SetMaxOpenConns(80)
		conn.SetMaxIdleConns(20)
		conn.SetConnMaxLifetime(30 * time.Minute)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	return conn, nil
}
