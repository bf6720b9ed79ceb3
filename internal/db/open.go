package db

import (
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// IsPostgres reports whether the DSN points at a PostgreSQL server.
// Anything else is treated as a SQLite path.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open abre la base de datos. Postgres va por pgx; SQLite lleva las PRAGMA
// recomendadas.
func Open(dsn string) (*sql.DB, error) {
	if IsPostgres(dsn) {
		return sql.Open("pgx", dsn)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Las PRAGMA son por conexión; con una sola conexión aplican siempre y
	// SQLite solo admite un escritor de todos modos.
	db.SetMaxOpenConns(1)

	// Importante: reducir contención y evitar bloqueos largos
	_, _ = db.Exec(`PRAGMA journal_mode=WAL;`)  // lectores no bloquean al escritor
	_, _ = db.Exec(`PRAGMA busy_timeout=3000;`) // espera hasta 3s antes de “database is locked”
	_, _ = db.Exec(`PRAGMA foreign_keys=ON;`)   // forzar integridad referencial

	return db, nil
}
