package db

// database/sql drivers selectable through the `driver` profile key.
// mattn/go-sqlite3 is registered by sqlite_driver.go.
import (
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)
