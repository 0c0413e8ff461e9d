package sqlite

import (
	"errors"
	"fmt"
	"time"

	"github.com/absmach/fedledger/pkg/storage/sqlstore"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrMigration    = errors.New("database migration error")
)

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func NewRepositories(db *Database) sqlstore.Repositories {
	return sqlstore.NewRepositories(db.DB, sqlstore.Dialect{IsUniqueViolation: isUniqueViolation})
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}

	return serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS models (
						id TEXT PRIMARY KEY,
						disease TEXT NOT NULL,
						kind TEXT NOT NULL,
						weights TEXT NOT NULL,
						weights_cid TEXT,
						current_round INTEGER NOT NULL DEFAULT 0,
						accuracy REAL NOT NULL DEFAULT 0,
						loss REAL NOT NULL DEFAULT 0,
						status TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL,
						updated_at TIMESTAMP NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_models_created_at ON models(created_at)`,
					`CREATE TABLE IF NOT EXISTS rounds (
						id TEXT PRIMARY KEY,
						model_id TEXT NOT NULL,
						number INTEGER NOT NULL,
						status TEXT NOT NULL,
						opened_at TIMESTAMP NOT NULL,
						deadline TIMESTAMP NOT NULL,
						closed_at TIMESTAMP,
						min_participants INTEGER NOT NULL,
						result TEXT,
						FOREIGN KEY (model_id) REFERENCES models(id) ON DELETE CASCADE
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_model_id ON rounds(model_id, number DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_status ON rounds(status)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_rounds_open_per_model ON rounds(model_id)
						WHERE status IN ('pending', 'active', 'aggregating')`,
					`CREATE TABLE IF NOT EXISTS contributions (
						id TEXT PRIMARY KEY,
						round_id TEXT NOT NULL,
						participant_id TEXT NOT NULL,
						delta TEXT NOT NULL,
						delta_cid TEXT,
						accuracy REAL NOT NULL,
						loss REAL NOT NULL,
						samples_trained INTEGER NOT NULL,
						proof TEXT NOT NULL,
						submitted_at TIMESTAMP NOT NULL,
						suspicious INTEGER NOT NULL DEFAULT 0,
						suspicion_reasons TEXT,
						UNIQUE (round_id, participant_id),
						FOREIGN KEY (round_id) REFERENCES rounds(id) ON DELETE CASCADE
					)`,
					`CREATE INDEX IF NOT EXISTS idx_contributions_round_id ON contributions(round_id, submitted_at)`,
					`CREATE TABLE IF NOT EXISTS participants (
						wallet_id TEXT PRIMARY KEY,
						display_name TEXT NOT NULL,
						active INTEGER NOT NULL DEFAULT 1,
						contributions INTEGER NOT NULL DEFAULT 0,
						reputation REAL NOT NULL DEFAULT 1,
						registered_at TIMESTAMP NOT NULL,
						updated_at TIMESTAMP NOT NULL
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS participants`,
					`DROP INDEX IF EXISTS idx_contributions_round_id`,
					`DROP TABLE IF EXISTS contributions`,
					`DROP INDEX IF EXISTS idx_rounds_open_per_model`,
					`DROP INDEX IF EXISTS idx_rounds_status`,
					`DROP INDEX IF EXISTS idx_rounds_model_id`,
					`DROP TABLE IF EXISTS rounds`,
					`DROP INDEX IF EXISTS idx_models_created_at`,
					`DROP TABLE IF EXISTS models`,
				},
			},
			{
				Id: "2_contributions_by_participant",
				Up: []string{
					`CREATE INDEX IF NOT EXISTS idx_contributions_participant_id ON contributions(participant_id, submitted_at DESC)`,
				},
				Down: []string{
					`DROP INDEX IF EXISTS idx_contributions_participant_id`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
