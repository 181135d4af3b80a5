package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contentdesk/internal/api"
	"contentdesk/internal/authz"
	"contentdesk/internal/cms"
	"contentdesk/internal/config"
	"contentdesk/internal/db"
	"contentdesk/internal/dsl"
	"contentdesk/internal/logger"
	"contentdesk/internal/registry"
	"contentdesk/internal/schema"
	"contentdesk/internal/store"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadWithPath("config.json", os.Args[1:])
	if err != nil {
		logger.Fatalf("Ошибка конфигурации: %v", err)
	}
	if err := logger.InitLogger(cfg.Log); err != nil {
		logger.Fatalf("Ошибка настройки логов: %v", err)
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. DSL-сущности и описания типов контента
	catalog, err := dsl.LoadAllEntities(cfg.DSLDir)
	if err != nil {
		logger.Fatalf("Ошибка загрузки DSL: %v", err)
	}
	logger.Infof("Загружено сущностей: %d", len(catalog))

	types, err := registry.LoadDir(cfg.TypesDir)
	if err != nil {
		logger.Fatalf("Ошибка загрузки типов контента: %v", err)
	}
	reg, err := registry.New(types, catalog)
	if err != nil {
		logger.Fatalf("Ошибка регистрации типов: %v", err)
	}
	if err := reg.Lint(); err != nil {
		logger.Fatalf("Описания типов с ошибками:\n%v", err)
	}
	logger.Infof("Зарегистрировано типов контента: %d", len(types))

	// 2. База и (опционально) создание недостающих таблиц
	conn, dialect, err := db.Open(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		logger.Fatalf("Ошибка подключения к БД: %v", err)
	}
	defer conn.Close()

	if cfg.AutoMigrate {
		stmts, err := db.GenerateDDL(catalog, dialect)
		if err != nil {
			logger.Fatalf("Ошибка генерации DDL: %v", err)
		}
		if err := db.ApplyDDL(ctx, conn, stmts); err != nil {
			logger.Fatalf("Ошибка применения DDL: %v", err)
		}
		logger.Infof("DDL применён: %d выражений", len(stmts))
	}

	// 3. Интроспекция схемы: кэш в Redis, если задан адрес
	var opts []schema.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatalf("Redis недоступен (%s): %v", cfg.RedisAddr, err)
		}
		opts = append(opts, schema.WithCache(schema.NewRedisCache(rdb, cfg.RedisPrefix)))
	}
	introspector, err := schema.New(conn, dialect, opts...)
	if err != nil {
		logger.Fatalf("Ошибка интроспектора схемы: %v", err)
	}

	// 4. Провайдер, контроллер, права
	st := store.New(entsql.OpenDB(dialect, conn), catalog)
	provider := cms.NewProvider(reg, introspector, st)
	if err := provider.CheckSchema(ctx); err != nil {
		logger.Fatalf("Схема БД не совпадает с описаниями типов:\n%v", err)
	}
	controller := cms.NewController(provider, authz.NewGate(), cfg.PerPage)

	var tokens *authz.Service
	if cfg.JWTSecret != "" {
		tokens = authz.NewService(cfg.JWTSecret, cfg.JWTIssuer, 0)
	}

	// 5. HTTP
	router := api.NewRouter(provider, controller, api.Options{Prefix: cfg.RoutePrefix, Tokens: tokens})
	logger.Infof("Стартуем сервер contentdesk на %s (prefix %s)", cfg.Addr, cfg.RoutePrefix)
	if err := api.RunServer(ctx, cfg.Addr, router); err != nil {
		logger.Fatalf("Сервер остановлен с ошибкой: %v", err)
	}
	logger.Info("Сервер остановлен")
}
