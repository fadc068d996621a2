package dbeaver

import "strings"

// NormalizeDbType maps DBeaver provider names and JDBC sub-protocols onto one
// canonical database name.
func NormalizeDbType(dbType string) string {
	v := strings.ToLower(strings.TrimSpace(dbType))
	switch v {
	case "postgresql", "pg":
		return "postgres"
	case "mssql", "jtds":
		return "sqlserver"
	case "mariadb":
		return "mysql"
	case "informix-sqli":
		return "informix"
	default:
		return v
	}
}

var driverClasses = map[string]string{
	"postgres":  "org.postgresql.Driver",
	"mysql":     "com.mysql.cj.jdbc.Driver",
	"oracle":    "oracle.jdbc.OracleDriver",
	"sqlserver": "com.microsoft.sqlserver.jdbc.SQLServerDriver",
	"h2":        "org.h2.Driver",
	"hsqldb":    "org.hsqldb.jdbcDriver",
	"db2":       "com.ibm.db2.jcc.DB2Driver",
	"informix":  "com.informix.jdbc.IfxDriver",
	"vertica":   "com.vertica.jdbc.Driver",
}

// DriverClass returns the JDBC driver class for a canonical database name,
// or "" when unknown.
func DriverClass(dbType string) string {
	return driverClasses[NormalizeDbType(dbType)]
}
