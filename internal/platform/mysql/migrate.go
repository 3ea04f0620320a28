package mysql

import (
	_ "github.com/golang-migrate/migrate/v4/database/mysql" // драйвер миграций mysql

	"laju/internal/config"
)

// MigrateURL возвращает URL базы данных для golang-migrate: DSN драйвера с префиксом схемы.
func MigrateURL(d config.Descriptor) string {
	return "mysql://" + DSN(d)
}
