package database

import (
	"context"
	"log/slog"

	"laju/internal/config"
	"laju/internal/platform/sqlite"
)

// ApplyOptimizations применяет настройки производительности встроенного движка.
// Для postgres и mysql ничего не выполняет. Ошибки отдельных PRAGMA
// логируются и не возвращаются: соединение остаётся пригодным.
// Возвращает количество применённых настроек.
func ApplyOptimizations(ctx context.Context, db sqlite.Execer, desc config.Descriptor, log *slog.Logger) int {
	if !desc.IsSQLite() {
		return 0
	}
	return sqlite.ApplyPragmas(ctx, db, sqlite.DefaultDBOptions(), log)
}
