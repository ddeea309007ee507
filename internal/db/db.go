package db

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

func InitDB(dbURL string, logger zerolog.Logger) *sql.DB {
	db, err := sql.Open("mysql", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not open database")
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	err = db.Ping()
	if err != nil {
		logger.Fatal().Err(err).Msg("Database is not responding")
	}

	logger.Info().Msg("Connected to database")
	return db
}

func RunMigrations(db *sql.DB, logger zerolog.Logger) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS order_settlements (
			transaction_id VARCHAR(128) PRIMARY KEY,
			status VARCHAR(20) NOT NULL DEFAULT 'claimed',
			order_id VARCHAR(64),
			claimed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			settled_at DATETIME NULL,
			INDEX idx_status_claimed_at (status, claimed_at)
		);`,
	}

	for _, q := range queries {
		_, err := db.Exec(q)
		if err != nil {
			logger.Fatal().Err(err).Msg("Migration failed")
		}
	}
	logger.Info().Msg("Migrations complete")
}
