package database

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql" // драйвер mysql для database/sql
	_ "github.com/jackc/pgx/v5/stdlib" // драйвер pgx для database/sql

	"laju/internal/config"
	"laju/internal/platform/mysql"
	"laju/internal/platform/pg"
	"laju/internal/platform/sqlite"
)

// Имена драйверов database/sql для каждого семейства бэкендов.
const (
	DriverSQLite   = sqlite.DriverName
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
)

// DataSource возвращает имя драйвера и строку подключения для дескриптора.
func DataSource(desc config.Descriptor) (driver, dsn string, err error) {
	switch desc.Client {
	case config.ClientSQLite:
		return DriverSQLite, sqlite.BuildDSN(desc.Filename, sqlite.OptionsFromDescriptor(desc)), nil
	case config.ClientPostgres:
		dsn, err := pg.DSN(desc)
		if err != nil {
			return "", "", err
		}
		return DriverPostgres, dsn, nil
	case config.ClientMySQL:
		return DriverMySQL, mysql.DSN(desc), nil
	default:
		return "", "", fmt.Errorf("unsupported database client %q", desc.Client)
	}
}

// MigrateURL возвращает URL базы для golang-migrate.
func MigrateURL(desc config.Descriptor) (string, error) {
	switch desc.Client {
	case config.ClientSQLite:
		return sqlite.MigrateURL(desc)
	case config.ClientPostgres:
		return pg.MigrateURL(desc)
	case config.ClientMySQL:
		return mysql.MigrateURL(desc), nil
	default:
		return "", fmt.Errorf("unsupported database client %q", desc.Client)
	}
}
