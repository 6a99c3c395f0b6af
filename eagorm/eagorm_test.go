package eagorm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
)

func TestOpenSQLite(t *testing.T) {
	s, err := Open(entityassist.Config{
		Driver:       "sqlite",
		Database:     ":memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
		Detached:     true,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Health(context.Background()))
	assert.Equal(t, dialect.SQLite, s.Dialect())
	assert.True(t, s.Detached())
	require.NotNil(t, s.Raw())

	sqlDB, err := s.DB().DB()
	require.NoError(t, err)
	assert.Same(t, sqlDB, s.Raw().DB, "raw pool is shared with gorm by default")
}

func TestOpenSeparateRawPool(t *testing.T) {
	s, err := Open(entityassist.Config{
		Driver:          "sqlite3",
		Database:        ":memory:",
		LogLevel:        "silent",
		SeparateRawPool: true,
	})
	require.NoError(t, err)
	defer s.Close()

	sqlDB, err := s.DB().DB()
	require.NoError(t, err)
	require.NotNil(t, s.Raw())
	assert.NotSame(t, sqlDB, s.Raw().DB)
	assert.NoError(t, s.Health(context.Background()))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(entityassist.Config{Driver: "oracle"})
	require.Error(t, err)
	assert.True(t, entityassist.IsErrorType(err, entityassist.ErrorTypeUnsupported))
}

func TestDialector(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", "postgres"},
		{"pq", "postgres"},
		{"mysql", "mysql"},
		{"sqlite3", "sqlite"},
		{"mssql", "sqlserver"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(entityassist.Config{Driver: tt.driver})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, LogLevel("silent"))
	assert.Equal(t, logger.Error, LogLevel("ERROR"))
	assert.Equal(t, logger.Info, LogLevel("debug"))
	assert.Equal(t, logger.Warn, LogLevel(""))
}

func TestGormConfigNaming(t *testing.T) {
	cfg := GormConfig(entityassist.Config{SingularTable: true})
	assert.Equal(t, "customer", cfg.NamingStrategy.TableName("Customer"))

	cfg = GormConfig(entityassist.Config{})
	assert.Equal(t, "customers", cfg.NamingStrategy.TableName("Customer"))
}

func TestDSNBuilders(t *testing.T) {
	cfg := entityassist.Config{Host: "localhost", Port: 5432, Database: "wh", Username: "u", Password: "p"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=wh sslmode=disable", buildPostgresDSN(cfg))

	cfg.Port = 1433
	assert.Equal(t, "sqlserver://u:p@localhost:1433?database=wh", buildSQLServerDSN(cfg))

	cfg.Port = 3306
	assert.Equal(t, "u:p@tcp(localhost:3306)/wh?parseTime=true", buildMySQLDSN(cfg))

	cfg.ConnectionURL = "u@unix(/tmp/mysql.sock)/wh"
	assert.Equal(t, "u@unix(/tmp/mysql.sock)/wh", buildMySQLDSN(cfg))
}

func TestConvertError(t *testing.T) {
	tests := []struct {
		err  error
		want entityassist.ErrorType
	}{
		{gorm.ErrRecordNotFound, entityassist.ErrorTypeNotFound},
		{fmt.Errorf("find: %w", gorm.ErrRecordNotFound), entityassist.ErrorTypeNotFound},
		{gorm.ErrInvalidTransaction, entityassist.ErrorTypeTransaction},
		{gorm.ErrMissingWhereClause, entityassist.ErrorTypeInvalidArgument},
		{gorm.ErrDuplicatedKey, entityassist.ErrorTypeDuplicate},
		{gorm.ErrForeignKeyViolated, entityassist.ErrorTypeConstraint},
		{gorm.ErrNotImplemented, entityassist.ErrorTypeUnsupported},
		{fmt.Errorf("connection refused"), entityassist.ErrorTypeConnection},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.True(t, entityassist.IsErrorType(ConvertError(tt.err), tt.want))
		})
	}
	assert.NoError(t, ConvertError(nil))
}
