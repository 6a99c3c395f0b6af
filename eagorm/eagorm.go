// Package eagorm opens a gorm connection from an entityassist.Config and
// wraps it, together with its raw pool, in an entityassist.Session.
package eagorm

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
	"github.com/Entity-Assist/EntityAssist-sub001/eabun"
)

// =====================================
// Connection
// =====================================

// Open connects to the database described by config and returns a ready
// session. Detached statements share gorm's pool unless
// config.SeparateRawPool asks for a dedicated one. SQL Server has no raw
// bun pool; its detached statements run on gorm's *sql.DB directly.
func Open(config entityassist.Config, opts ...entityassist.Option) (*entityassist.Session, error) {
	dialector, err := Dialector(config)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, GormConfig(config))
	if err != nil {
		return nil, entityassist.NewErrorWithCause(entityassist.ErrorTypeConnection,
			"failed to connect to database", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, entityassist.NewErrorWithCause(entityassist.ErrorTypeConnection,
			"failed to get underlying sql.DB", err)
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

	base := []entityassist.Option{
		entityassist.WithDetached(config.Detached),
		entityassist.WithErrorTranslator(ConvertError),
	}
	if entityassist.NormalizeDriver(config.Driver) != entityassist.DriverSQLServer {
		raw, err := rawPool(config, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		base = append(base, entityassist.WithRaw(raw))
	}

	s, err := entityassist.NewSession(db, append(base, opts...)...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func rawPool(config entityassist.Config, shared *sql.DB) (*bun.DB, error) {
	if config.SeparateRawPool {
		return eabun.Open(config)
	}
	return eabun.Wrap(shared, config.Driver, config.QueryDebug)
}

// GormConfig builds gorm's configuration: logger level and table naming.
func GormConfig(config entityassist.Config) *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(LogLevel(config.LogLevel)),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: config.SingularTable,
		},
		TranslateError: true,
	}
}

// LogLevel maps a configured level name to gorm's. Unknown names mean
// warn.
func LogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Dialector selects the gorm driver for config.
func Dialector(config entityassist.Config) (gorm.Dialector, error) {
	switch entityassist.NormalizeDriver(config.Driver) {
	case entityassist.DriverPostgres, eabun.DriverPQ:
		return postgres.Open(buildPostgresDSN(config)), nil
	case entityassist.DriverMySQL:
		return mysql.Open(buildMySQLDSN(config)), nil
	case entityassist.DriverSQLite:
		return sqlite.Open(config.Database), nil
	case entityassist.DriverSQLServer:
		return sqlserver.Open(buildSQLServerDSN(config)), nil
	default:
		return nil, entityassist.NewError(entityassist.ErrorTypeUnsupported,
			fmt.Sprintf("unsupported driver: %s", config.Driver))
	}
}

// =====================================
// Error Conversion
// =====================================

// ConvertError converts gorm errors, then raw driver errors, to
// entityassist errors.
func ConvertError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeTransaction, "invalid transaction", err)
	case errors.Is(err, gorm.ErrNotImplemented), errors.Is(err, gorm.ErrUnsupportedRelation):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeUnsupported, "operation not supported", err)
	case errors.Is(err, gorm.ErrMissingWhereClause):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeInvalidArgument, "missing where clause", err)
	case errors.Is(err, gorm.ErrPrimaryKeyRequired):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeInvalidArgument, "primary key required", err)
	case errors.Is(err, gorm.ErrModelValueRequired), errors.Is(err, gorm.ErrInvalidData):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeValidation, "invalid data", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeDuplicate, "duplicate key violation", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return entityassist.NewErrorWithCause(entityassist.ErrorTypeConstraint, "constraint violation", err)
	default:
		return eabun.ConvertError(err)
	}
}

// =====================================
// DSN Builders
// =====================================

// buildPostgresDSN builds a PostgreSQL DSN
func buildPostgresDSN(config entityassist.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database)

	if config.SSL.Enabled {
		dsn += " sslmode=" + config.SSL.Mode
		if config.SSL.CertFile != "" {
			dsn += " sslcert=" + config.SSL.CertFile
		}
		if config.SSL.KeyFile != "" {
			dsn += " sslkey=" + config.SSL.KeyFile
		}
		if config.SSL.CAFile != "" {
			dsn += " sslrootcert=" + config.SSL.CAFile
		}
	} else {
		dsn += " sslmode=disable"
	}

	return dsn
}

// buildMySQLDSN builds a MySQL DSN
func buildMySQLDSN(config entityassist.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	return eabun.BuildMySQLConfig(config).FormatDSN()
}

// buildSQLServerDSN builds a SQL Server DSN
func buildSQLServerDSN(config entityassist.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}
