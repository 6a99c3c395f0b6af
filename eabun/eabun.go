// Package eabun opens the raw connection pool detached statements run on.
// The pool is a bun.DB so raw statements get bun's query hooks, including
// bundebug logging.
package eabun

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
)

// DriverPQ selects lib/pq instead of pgdriver for PostgreSQL.
const DriverPQ = "pq"

// =====================================
// Connection
// =====================================

// Open opens a dedicated raw pool described by config.
func Open(config entityassist.Config) (*bun.DB, error) {
	var sqlDB *sql.DB
	var err error

	if strings.EqualFold(config.Driver, DriverPQ) {
		sqlDB, err = sql.Open("postgres", buildPostgresDSN(config))
	} else {
		switch entityassist.NormalizeDriver(config.Driver) {
		case entityassist.DriverPostgres:
			sqlDB = createPgDriverConnection(config)
		case entityassist.DriverMySQL:
			sqlDB, err = createMySQLConnection(config)
		case entityassist.DriverSQLite:
			sqlDB, err = sql.Open("sqlite3", config.Database)
		default:
			return nil, entityassist.NewError(entityassist.ErrorTypeUnsupported,
				fmt.Sprintf("no raw pool for driver: %s", config.Driver))
		}
	}
	if err != nil {
		return nil, entityassist.NewErrorWithCause(entityassist.ErrorTypeConnection,
			"failed to connect to database", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	db, err := Wrap(sqlDB, config.Driver, config.QueryDebug)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Wrap puts a bun.DB around an existing pool, typically gorm's, so both
// share connections. debug installs the bundebug query hook.
func Wrap(sqlDB *sql.DB, driver string, debug bool) (*bun.DB, error) {
	d, err := Dialect(driver)
	if err != nil {
		return nil, err
	}
	db := bun.NewDB(sqlDB, d)
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
		))
	}
	return db, nil
}

// Dialect returns bun's dialect for driver. SQL Server has none.
func Dialect(driver string) (schema.Dialect, error) {
	if strings.EqualFold(driver, DriverPQ) {
		return pgdialect.New(), nil
	}
	switch entityassist.NormalizeDriver(driver) {
	case entityassist.DriverPostgres:
		return pgdialect.New(), nil
	case entityassist.DriverMySQL:
		return mysqldialect.New(), nil
	case entityassist.DriverSQLite:
		return sqlitedialect.New(), nil
	default:
		return nil, entityassist.NewError(entityassist.ErrorTypeUnsupported,
			fmt.Sprintf("no bun dialect for driver: %s", driver))
	}
}

// createPgDriverConnection creates a PostgreSQL connection using pgdriver
func createPgDriverConnection(config entityassist.Config) *sql.DB {
	connector := pgdriver.NewConnector(pgdriver.WithDSN(buildPostgresDSN(config)))
	return sql.OpenDB(connector)
}

// createMySQLConnection creates a MySQL connection
func createMySQLConnection(config entityassist.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("mysql", config.ConnectionURL)
	}
	return sql.Open("mysql", BuildMySQLConfig(config).FormatDSN())
}

// BuildMySQLConfig maps config onto the MySQL driver's configuration.
func BuildMySQLConfig(config entityassist.Config) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = config.Username
	mc.Passwd = config.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	mc.DBName = config.Database
	mc.ParseTime = true
	if config.SSL.Enabled {
		mc.TLSConfig = config.SSL.Mode
	}
	return mc
}

// buildPostgresDSN builds a PostgreSQL DSN string
func buildPostgresDSN(config entityassist.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	params := []string{}
	if config.SSL.Enabled {
		params = append(params, "sslmode="+config.SSL.Mode)
		if config.SSL.CertFile != "" {
			params = append(params, "sslcert="+config.SSL.CertFile)
		}
		if config.SSL.KeyFile != "" {
			params = append(params, "sslkey="+config.SSL.KeyFile)
		}
		if config.SSL.CAFile != "" {
			params = append(params, "sslrootcert="+config.SSL.CAFile)
		}
	} else {
		params = append(params, "sslmode=disable")
	}

	return dsn + "?" + strings.Join(params, "&")
}
