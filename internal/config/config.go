package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"contentdesk/internal/db"
	"contentdesk/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string `json:"addr"`
	DBDriver    string `json:"dbDriver"` // sqlite | mysql | postgres
	DBURL       string `json:"dbUrl"`
	DSLDir      string `json:"dslDir"`
	TypesDir    string `json:"typesDir"`
	AutoMigrate bool   `json:"autoMigrate"`

	RoutePrefix string `json:"routePrefix"`
	PerPage     int    `json:"perPage"`

	// Пустой секрет — аутентификация выключена
	JWTSecret string `json:"jwtSecret"`
	JWTIssuer string `json:"jwtIssuer"`

	// Пустой адрес — кэш колонок в памяти процесса
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDb"`
	RedisPrefix   string `json:"redisPrefix"`

	Log logger.LogConfig `json:"log"`
}

func def() Config {
	return Config{
		Addr:        ":8080",
		DBDriver:    "sqlite",
		DBURL:       "file:contentdesk.db?_pragma=foreign_keys(1)",
		DSLDir:      "dsl",
		TypesDir:    "types",
		AutoMigrate: false,

		RoutePrefix: "/cms",
		PerPage:     15,

		JWTSecret: "",
		JWTIssuer: "contentdesk",

		RedisAddr:   "",
		RedisPrefix: "contentdesk",

		Log: logger.LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// LoadWithPath собирает конфиг слоями: значения по умолчанию, JSON-файл,
// .env (не перекрывает уже заданные переменные), CONTENTDESK_* из окружения, флаги args.
func LoadWithPath(jsonPath string, args []string) (Config, error) {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		c2, err := loadJSON(jsonPath)
		if err != nil {
			return cfg, err
		}
		cfg = c2
	}

	// .env — необязателен
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf(".env: %w", err)
	}

	// ENV overrides
	cfg.Addr = getenv("CONTENTDESK_ADDR", cfg.Addr)
	cfg.DBDriver = getenv("CONTENTDESK_DB_DRIVER", cfg.DBDriver)
	cfg.DBURL = getenv("CONTENTDESK_DB_URL", cfg.DBURL)
	cfg.DSLDir = getenv("CONTENTDESK_DSL_DIR", cfg.DSLDir)
	cfg.TypesDir = getenv("CONTENTDESK_TYPES_DIR", cfg.TypesDir)
	cfg.AutoMigrate = getenvBool("CONTENTDESK_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.RoutePrefix = getenv("CONTENTDESK_ROUTE_PREFIX", cfg.RoutePrefix)
	cfg.PerPage = getenvInt("CONTENTDESK_PER_PAGE", cfg.PerPage)
	cfg.JWTSecret = getenv("CONTENTDESK_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getenv("CONTENTDESK_JWT_ISSUER", cfg.JWTIssuer)
	cfg.RedisAddr = getenv("CONTENTDESK_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenv("CONTENTDESK_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getenvInt("CONTENTDESK_REDIS_DB", cfg.RedisDB)
	cfg.RedisPrefix = getenv("CONTENTDESK_REDIS_PREFIX", cfg.RedisPrefix)
	cfg.Log.Level = getenv("CONTENTDESK_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.LogDir = getenv("CONTENTDESK_LOG_DIR", cfg.Log.LogDir)

	// Flags overrides
	fs := flag.NewFlagSet("contentdesk", flag.ContinueOnError)
	configPath := fs.String("config", jsonPath, "Path to config JSON")
	addr := fs.String("addr", cfg.Addr, "HTTP listen address")
	driver := fs.String("db-driver", cfg.DBDriver, "Database driver (sqlite/mysql/postgres)")
	dbURL := fs.String("db", cfg.DBURL, "Database URL / DSN")
	dsl := fs.String("dsl", cfg.DSLDir, "Path to DSL directory")
	types := fs.String("types", cfg.TypesDir, "Path to content type YAML directory")
	auto := fs.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Create missing tables on start (true/false)")
	prefix := fs.String("prefix", cfg.RoutePrefix, "Route prefix of the admin screens")
	perPage := fs.Int("per-page", cfg.PerPage, "Records per list page")
	redisAddr := fs.String("redis", cfg.RedisAddr, "Redis address for the column cache (empty = in-process)")
	level := fs.String("log-level", cfg.Log.Level, "Log level")
	logDir := fs.String("log-dir", cfg.Log.LogDir, "Log directory (empty = stdout only)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath, args)
	}

	cfg.Addr = strings.TrimSpace(*addr)
	cfg.DBDriver = strings.TrimSpace(*driver)
	cfg.DBURL = strings.TrimSpace(*dbURL)
	cfg.DSLDir = strings.TrimSpace(*dsl)
	cfg.TypesDir = strings.TrimSpace(*types)
	if b, ok := parseBool(*auto); ok {
		cfg.AutoMigrate = b
	}
	cfg.RoutePrefix = strings.TrimSpace(*prefix)
	cfg.PerPage = *perPage
	cfg.RedisAddr = strings.TrimSpace(*redisAddr)
	cfg.Log.Level = strings.TrimSpace(*level)
	cfg.Log.LogDir = strings.TrimSpace(*logDir)

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := db.Dialect(c.DBDriver); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DBURL == "" {
		return fmt.Errorf("config: db url is empty")
	}
	if c.PerPage <= 0 {
		return fmt.Errorf("config: per page must be positive, got %d", c.PerPage)
	}
	return nil
}
