package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client определяет семейство бэкенда базы данных.
type Client string

const (
	// ClientSQLite - встроенный движок SQLite (значение по умолчанию)
	ClientSQLite Client = "sqlite"
	// ClientPostgres - PostgreSQL
	ClientPostgres Client = "postgres"
	// ClientMySQL - MySQL
	ClientMySQL Client = "mysql"
)

// Stage - именованный профиль конфигурации.
type Stage string

const (
	StageDevelopment Stage = "development"
	StageProduction  Stage = "production"
	StageTest        Stage = "test"
)

// Значения по умолчанию для переменных окружения DB_*.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPostgresPort = 5432
	DefaultMySQLPort    = 3306
	DefaultPostgresUser = "postgres"
	DefaultMySQLUser    = "root"
	DefaultDatabase     = "laju"
	DefaultFilename     = "./data/dev.sqlite3"
	TestFilename        = "./data/test.sqlite3"
	DefaultPoolMin      = 0
	DefaultPoolMax      = 10

	// PoolTimeout - фиксированные таймауты захвата и простоя соединения
	PoolTimeout = 30 * time.Second
)

// Pool описывает границы пула соединений.
type Pool struct {
	Min            int           `validate:"gte=0,ltefield=Max"`
	Max            int           `validate:"gte=1"`
	AcquireTimeout time.Duration `validate:"gt=0"`
	IdleTimeout    time.Duration `validate:"gt=0"`
}

// Descriptor - нормализованная конфигурация подключения для одного stage.
// Заполнен ровно один из вариантов: структурные параметры (Host/Port/User/...),
// строка подключения URL или путь к файлу Filename. Какой именно - определяется Client.
type Descriptor struct {
	Stage  Stage  `validate:"required,oneof=development production test"`
	Client Client `validate:"required,oneof=sqlite postgres mysql"`
	// Token - исходное значение DB_CLIENT, используется в сообщениях об ошибках
	Token string

	Host     string
	Port     int `validate:"omitempty,min=1,max=65535"`
	User     string
	Password string
	Database string

	URL      string
	Filename string

	Pool             Pool
	UseNullAsDefault bool
}

// ParseClient сопоставляет значение DB_CLIENT с семейством бэкенда.
// Неизвестные и пустые значения дают SQLite, ошибки не бывает.
func ParseClient(token string) Client {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "pg", "postgresql":
		return ClientPostgres
	case "mysql", "mysql2":
		return ClientMySQL
	default:
		// better-sqlite3, sqlite3 и всё остальное
		return ClientSQLite
	}
}

// ActiveStage возвращает stage из DB_CONNECTION (по умолчанию development).
func ActiveStage(lookup func(string) string) Stage {
	return Stage(strings.ToLower(getenvFrom(lookup, "DB_CONNECTION", string(StageDevelopment))))
}

// Resolve строит Descriptor для stage из текущего окружения процесса.
// Вызывается заново при каждом запросе конфигурации, поэтому изменения
// переменных окружения видны без перезапуска.
func Resolve(stage Stage) Descriptor {
	return ResolveFrom(stage, os.Getenv)
}

// ResolveFrom строит Descriptor для stage, читая переменные через lookup.
// Функция чистая: не выполняет I/O и никогда не возвращает ошибку,
// отсутствующие значения заменяются значениями по умолчанию.
func ResolveFrom(stage Stage, lookup func(string) string) Descriptor {
	// Тестовый stage всегда изолирован от настроенного бэкенда
	if stage == StageTest {
		return Descriptor{
			Stage:            StageTest,
			Client:           ClientSQLite,
			Filename:         TestFilename,
			Pool:             sqlitePool(),
			UseNullAsDefault: true,
		}
	}

	token := strings.TrimSpace(lookup("DB_CLIENT"))
	d := Descriptor{
		Stage:  stage,
		Client: ParseClient(token),
		Token:  token,
	}

	switch d.Client {
	case ClientPostgres:
		// Строка подключения имеет безусловный приоритет над отдельными полями
		if dsn := lookup("DATABASE_URL"); dsn != "" {
			d.URL = dsn
		} else {
			d.Host = getenvFrom(lookup, "DB_HOST", DefaultHost)
			d.Port = intFrom(lookup, "DB_PORT", DefaultPostgresPort)
			d.User = getenvFrom(lookup, "DB_USER", DefaultPostgresUser)
			d.Password = lookup("DB_PASSWORD")
			d.Database = getenvFrom(lookup, "DB_NAME", DefaultDatabase)
		}
		d.Pool = networkPool(lookup)
	case ClientMySQL:
		d.Host = getenvFrom(lookup, "DB_HOST", DefaultHost)
		d.Port = intFrom(lookup, "DB_PORT", DefaultMySQLPort)
		d.User = getenvFrom(lookup, "DB_USER", DefaultMySQLUser)
		d.Password = lookup("DB_PASSWORD")
		d.Database = getenvFrom(lookup, "DB_NAME", DefaultDatabase)
		d.Pool = networkPool(lookup)
	default:
		d.Filename = getenvFrom(lookup, "DB_FILENAME", DefaultFilename)
		d.Pool = sqlitePool()
		d.UseNullAsDefault = true
	}

	return d
}

// sqlitePool закрепляет ровно одно соединение: SQLite сериализует писателей.
func sqlitePool() Pool {
	return Pool{Min: 1, Max: 1, AcquireTimeout: PoolTimeout, IdleTimeout: PoolTimeout}
}

func networkPool(lookup func(string) string) Pool {
	return Pool{
		Min:            intFrom(lookup, "DB_POOL_MIN", DefaultPoolMin),
		Max:            intFrom(lookup, "DB_POOL_MAX", DefaultPoolMax),
		AcquireTimeout: PoolTimeout,
		IdleTimeout:    PoolTimeout,
	}
}

func intFrom(lookup func(string) string, k string, def int) int {
	v := strings.TrimSpace(lookup(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// IsSQLite сообщает, использует ли дескриптор встроенный движок.
func (d Descriptor) IsSQLite() bool {
	return d.Client == ClientSQLite
}

// ClientName возвращает имя клиента в том виде, в котором его задал пользователь.
func (d Descriptor) ClientName() string {
	if d.Token != "" {
		return d.Token
	}
	return string(d.Client)
}

// Validate проверяет, что дескриптор пригоден для открытия соединения.
func (d Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}

	structured := d.Host != "" || d.Port != 0 || d.User != "" || d.Database != ""
	switch d.Client {
	case ClientSQLite:
		if d.Filename == "" {
			return errors.New("sqlite descriptor requires a filename")
		}
		if structured || d.URL != "" {
			return errors.New("sqlite descriptor must not carry network parameters")
		}
	case ClientPostgres:
		if d.Filename != "" {
			return errors.New("postgres descriptor must not carry a filename")
		}
		if d.URL != "" {
			if structured {
				return errors.New("postgres descriptor has both a connection string and structured parameters")
			}
			return nil
		}
		if err := requireStructured(d); err != nil {
			return err
		}
	case ClientMySQL:
		if d.Filename != "" || d.URL != "" {
			return errors.New("mysql descriptor accepts structured parameters only")
		}
		if err := requireStructured(d); err != nil {
			return err
		}
	}
	return nil
}

func requireStructured(d Descriptor) error {
	switch {
	case d.Host == "":
		return fmt.Errorf("%s descriptor requires a host", d.Client)
	case d.Port == 0:
		return fmt.Errorf("%s descriptor requires a port", d.Client)
	case d.User == "":
		return fmt.Errorf("%s descriptor requires a user", d.Client)
	case d.Database == "":
		return fmt.Errorf("%s descriptor requires a database name", d.Client)
	}
	return nil
}

// LogValue реализует slog.LogValuer и скрывает пароль и учётные данные в URL.
func (d Descriptor) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("stage", string(d.Stage)),
		slog.String("client", d.ClientName()),
	}
	switch {
	case d.Filename != "":
		attrs = append(attrs, slog.String("filename", d.Filename))
	case d.URL != "":
		attrs = append(attrs, slog.String("url", RedactURL(d.URL)))
	default:
		attrs = append(attrs,
			slog.String("host", d.Host),
			slog.Int("port", d.Port),
			slog.String("user", d.User),
			slog.String("database", d.Database),
		)
	}
	attrs = append(attrs,
		slog.Int("pool_min", d.Pool.Min),
		slog.Int("pool_max", d.Pool.Max),
	)
	return slog.GroupValue(attrs...)
}

// RedactURL заменяет пароль в строке подключения на "xxxxx".
// Нераспознаваемые строки скрываются целиком.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "[REDACTED]"
	}
	return u.Redacted()
}
