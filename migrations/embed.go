// Package migrations содержит встроенные SQL миграции для каждого бэкенда.
// Имя директории совпадает с config.Client.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
