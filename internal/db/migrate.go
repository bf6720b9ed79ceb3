package db

import (
	"database/sql"
	_ "embed"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Migrate crea las tablas si no existen. El esquema va embebido para que el
// binario (y los tests) no dependan del directorio de trabajo.
func Migrate(db *sql.DB, dsn string) error {
	schema := schemaSQLite
	if IsPostgres(dsn) {
		schema = schemaPostgres
	}
	_, err := db.Exec(schema)
	return err
}
