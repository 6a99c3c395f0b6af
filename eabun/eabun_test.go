package eabun

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	entityassist "github.com/Entity-Assist/EntityAssist-sub001"
)

func TestOpenSQLite(t *testing.T) {
	db, err := Open(entityassist.Config{
		Driver:       "sqlite3",
		Database:     ":memory:",
		MaxOpenConns: 1,
		QueryDebug:   true,
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, dialect.SQLite, db.Dialect().Name())

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ExecContext(ctx, "CREATE TABLE things (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "INSERT INTO things (name) VALUES ('what?');")
	require.NoError(t, err)

	var id int64
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT last_insert_rowid()").Scan(&id))
	assert.Equal(t, int64(1), id)

	var name string
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT name FROM things").Scan(&name))
	assert.Equal(t, "what?", name)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(entityassist.Config{Driver: "sqlserver"})
	require.Error(t, err)
	assert.True(t, entityassist.IsErrorType(err, entityassist.ErrorTypeUnsupported))
}

func TestDialect(t *testing.T) {
	tests := []struct {
		driver string
		want   dialect.Name
	}{
		{"postgres", dialect.PG},
		{"pgsql", dialect.PG},
		{"pq", dialect.PG},
		{"mysql", dialect.MySQL},
		{"sqlite", dialect.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialect(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}

	_, err := Dialect("mssql")
	assert.Error(t, err)
}

func TestBuildMySQLConfig(t *testing.T) {
	mc := BuildMySQLConfig(entityassist.Config{
		Host:     "db.internal",
		Port:     3306,
		Database: "warehouse",
		Username: "etl",
		Password: "secret",
	})
	assert.Equal(t, "etl:secret@tcp(db.internal:3306)/warehouse?parseTime=true", mc.FormatDSN())
}

func TestBuildPostgresDSN(t *testing.T) {
	cfg := entityassist.Config{Host: "localhost", Port: 5432, Database: "wh", Username: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@localhost:5432/wh?sslmode=disable", buildPostgresDSN(cfg))

	cfg.SSL = entityassist.SSLConfig{Enabled: true, Mode: "verify-full", CAFile: "/etc/ca.pem"}
	assert.Equal(t, "postgres://u:p@localhost:5432/wh?sslmode=verify-full&sslrootcert=/etc/ca.pem", buildPostgresDSN(cfg))

	cfg.ConnectionURL = "postgres://elsewhere/db"
	assert.Equal(t, "postgres://elsewhere/db", buildPostgresDSN(cfg))
}

func TestConvertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want entityassist.ErrorType
	}{
		{"no rows", sql.ErrNoRows, entityassist.ErrorTypeNotFound},
		{"deadline", context.DeadlineExceeded, entityassist.ErrorTypeTimeout},
		{"pq unique", &pq.Error{Code: "23505"}, entityassist.ErrorTypeDuplicate},
		{"pq foreign key", &pq.Error{Code: "23503"}, entityassist.ErrorTypeConstraint},
		{"pq connection", &pq.Error{Code: "08006", Message: "terminated"}, entityassist.ErrorTypeConnection},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, entityassist.ErrorTypeDuplicate},
		{"mysql fk", &mysql.MySQLError{Number: 1452}, entityassist.ErrorTypeConstraint},
		{"mysql lock", &mysql.MySQLError{Number: 1205}, entityassist.ErrorTypeTimeout},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, entityassist.ErrorTypeDuplicate},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, entityassist.ErrorTypeConstraint},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, entityassist.ErrorTypeTimeout},
		{"wrapped", fmt.Errorf("exec: %w", &pq.Error{Code: "23505"}), entityassist.ErrorTypeDuplicate},
		{"message", fmt.Errorf("UNIQUE constraint failed: people.email"), entityassist.ErrorTypeDuplicate},
		{"other", fmt.Errorf("syntax error near FROM"), entityassist.ErrorTypeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ConvertError(tt.err)
			require.Error(t, err)
			assert.True(t, entityassist.IsErrorType(err, tt.want), "got %v", err)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, ConvertError(nil))
	own := entityassist.NewError(entityassist.ErrorTypeStatement, "x")
	assert.Equal(t, own, ConvertError(own))
}
