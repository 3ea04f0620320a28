// Package sqlite предоставляет инфраструктурные компоненты для работы со встроенной SQLite.
//
// Основные возможности:
// - Открытие БД с пулом в одно соединение и настройками PRAGMA
// - Управление транзакциями с поддержкой savepoints
// - Нативный сервис с кэшем подготовленных выражений (Native / Unavailable)
// - URL для golang-migrate
// - Тестовые хелперы
//
// # Настройки PRAGMA
//
// Применяются после открытия соединения, по порядку:
//
//	PRAGMA journal_mode = WAL
//	PRAGMA synchronous = NORMAL
//	PRAGMA foreign_keys = ON
//	PRAGMA busy_timeout = 5000
//
// ApplyPragmas не прерывается на ошибке: неудачная настройка логируется,
// остальные применяются.
//
// # Нативный сервис
//
//	svc, err := sqlite.OpenNative(ctx, config.Resolve(config.StageDevelopment), log)
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	row, ok, err := svc.Get(ctx, "SELECT id, email FROM users WHERE id = ?", id)
//
//	err = svc.Transaction(ctx, func(ctx context.Context) error {
//		_, err := svc.Run(ctx, "INSERT INTO users (email) VALUES (?)", email)
//		return err
//	})
//
// Если активный клиент не sqlite, OpenNative возвращает Unavailable:
// все операции завершаются ошибкой shared.ErrUnavailable.
//
// Именованные параметры:
//
//	svc.All(ctx, "SELECT * FROM users WHERE role = :role", sqlite.Bind(map[string]any{"role": "admin"})...)
package sqlite
