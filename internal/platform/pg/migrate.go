package pg

import (
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // драйвер миграций postgres

	"laju/internal/config"
)

// MigrateURL возвращает URL базы данных для golang-migrate.
// Драйвер миграций принимает ту же строку подключения, что и приложение.
func MigrateURL(d config.Descriptor) (string, error) {
	return DSN(d)
}
