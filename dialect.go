package entityassist

import (
	"strings"

	"github.com/uptrace/bun/dialect"
)

// Driver constants
const (
	DriverSQLite    = "sqlite"
	DriverMySQL     = "mysql"
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
)

// SupportedDrivers is a list of all supported database drivers
var SupportedDrivers = []string{
	DriverSQLite,
	DriverMySQL,
	DriverPostgres,
	DriverSQLServer,
}

var driverAliases = map[string]string{
	"sqlite3":    DriverSQLite,
	"pg":         DriverPostgres,
	"pgsql":      DriverPostgres,
	"postgresql": DriverPostgres,
	"mssql":      DriverSQLServer,
}

// NormalizeDriver maps common spellings of a driver name to one of the
// Driver constants. Unknown names are returned lower-cased.
func NormalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	if alias, ok := driverAliases[d]; ok {
		return alias
	}
	return d
}

// IsDriverSupported checks if the given driver is supported
func IsDriverSupported(driver string) bool {
	d := NormalizeDriver(driver)
	for _, s := range SupportedDrivers {
		if s == d {
			return true
		}
	}
	return false
}

// DialectName returns the SQL dialect of a driver.
func DialectName(driver string) dialect.Name {
	switch NormalizeDriver(driver) {
	case DriverPostgres:
		return dialect.PG
	case DriverMySQL:
		return dialect.MySQL
	case DriverSQLite:
		return dialect.SQLite
	case DriverSQLServer:
		return dialect.MSSQL
	default:
		return dialect.Invalid
	}
}

var identityQueries = map[dialect.Name]string{
	dialect.PG:     "SELECT lastval()",
	dialect.MySQL:  "SELECT LAST_INSERT_ID()",
	dialect.SQLite: "SELECT last_insert_rowid()",
	dialect.MSSQL:  "SELECT @@IDENTITY",
}

// IdentityQuery returns the statement that reads the key generated by the
// last insert on the current connection.
func IdentityQuery(d dialect.Name) (string, bool) {
	q, ok := identityQueries[d]
	return q, ok
}
