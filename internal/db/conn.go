package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	_ "github.com/go-sql-driver/mysql" // driver: mysql
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Dialect нормализует имя драйвера из конфига к диалекту ent.
func Dialect(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "mariadb":
		return dialect.MySQL, nil
	case "postgres", "postgresql", "pgx":
		return dialect.Postgres, nil
	case "sqlite", "sqlite3":
		return dialect.SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// driverName — имя, под которым database/sql знает драйвер диалекта.
func driverName(d string) string {
	switch d {
	case dialect.Postgres:
		return "pgx"
	case dialect.SQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// Open открывает пул соединений и проверяет его пингом.
func Open(driver, url string) (*sql.DB, string, error) {
	d, err := Dialect(driver)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driverName(d), url)
	if err != nil {
		return nil, "", err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if d == dialect.SQLite {
		// in-memory база живёт в одном соединении
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, d, nil
}
