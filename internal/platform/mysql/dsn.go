// Package mysql собирает параметры подключения MySQL из дескриптора.
package mysql

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"laju/internal/config"
)

// NewConfig переносит структурные параметры дескриптора в конфигурацию драйвера.
func NewConfig(d config.Descriptor) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	cfg.DBName = d.Database
	cfg.ParseTime = true
	cfg.MultiStatements = true // миграции содержат несколько выражений
	cfg.Timeout = d.Pool.AcquireTimeout
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}

// DSN возвращает строку подключения в формате go-sql-driver/mysql.
func DSN(d config.Descriptor) string {
	return NewConfig(d).FormatDSN()
}
