package database

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ConnectPostgres opens the activity log database and creates its table.
func ConnectPostgres(postgresURI string, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("connected to PostgreSQL")

	if err := InitPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS activity_events (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(255),
			path VARCHAR(500) NOT NULL,
			event_type VARCHAR(50) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_events_created_at ON activity_events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_events_user_id ON activity_events(user_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
