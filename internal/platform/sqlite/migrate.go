package sqlite

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite"

	"laju/internal/config"
)

// BuildMigrateURL строит корректный URL для golang-migrate с учётом особенностей ОС.
// На Windows для путей вида "C:\..." создаёт "sqlite:///C:/...",
// на Unix для "/..." создаёт "sqlite:///...".
func BuildMigrateURL(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	urlPath := filepath.ToSlash(absPath)

	// C:/path -> /C:/path
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	return "sqlite://" + urlPath, nil
}

// MigrateURL возвращает URL базы для golang-migrate по дескриптору sqlite.
func MigrateURL(d config.Descriptor) (string, error) {
	if !d.IsSQLite() {
		return "", fmt.Errorf("migrate url: descriptor client is %s, not sqlite", d.Client)
	}
	return BuildMigrateURL(d.Filename)
}
