package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"laju/internal/adapter/scheduler"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`
	DB  struct {
		// Connection is the active stage name taken from DB_CONNECTION.
		Connection Stage `validate:"required,oneof=development production test"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Maintenance struct {
		Schedule string `validate:"required,cron"`
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Расписание обслуживания проверяется тем же парсером, что и в планировщике
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		return scheduler.ParseSchedule(fl.Field().String()) == nil
	})
	return v
}

// Load reads configuration from environment variables and optional .env file.
// Database connection parameters are not part of Config: they are resolved
// per stage by Resolve so that changes to DB_* variables are observed.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.DB.Connection = ActiveStage(os.Getenv)
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/laju-db.log")
	c.Maintenance.Schedule = getenv("MAINTENANCE_SCHEDULE", "@every 1h")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	return getenvFrom(os.Getenv, k, def)
}

func getenvFrom(lookup func(string) string, k, def string) string {
	if v := lookup(k); v != "" {
		return v
	}
	return def
}
