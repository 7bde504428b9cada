package db

import (
	"database/sql"
)

// Database is a connection that owns its schema: Connect opens it and applies pending migrations.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
}
