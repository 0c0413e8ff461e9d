package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/absmach/fedledger/pkg/storage/sqlstore"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

const uniqueViolation = "23505"

var (
	ErrDBConnection = errors.New("database connection error")
	ErrMigration    = errors.New("database migration error")
)

type Database struct {
	*sqlx.DB
}

func NewDatabase(host, port, user, password, dbname, sslMode string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslMode)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
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
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == uniqueViolation
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS models (
						id VARCHAR(36) PRIMARY KEY,
						disease VARCHAR(255) NOT NULL,
						kind VARCHAR(255) NOT NULL,
						weights TEXT NOT NULL,
						weights_cid VARCHAR(128),
						current_round BIGINT NOT NULL DEFAULT 0,
						accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
						loss DOUBLE PRECISION NOT NULL DEFAULT 0,
						status VARCHAR(32) NOT NULL,
						created_at TIMESTAMPTZ NOT NULL,
						updated_at TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_models_created_at ON models(created_at)`,
					`CREATE TABLE IF NOT EXISTS rounds (
						id VARCHAR(36) PRIMARY KEY,
						model_id VARCHAR(36) NOT NULL REFERENCES models(id) ON DELETE CASCADE,
						number BIGINT NOT NULL,
						status VARCHAR(32) NOT NULL,
						opened_at TIMESTAMPTZ NOT NULL,
						deadline TIMESTAMPTZ NOT NULL,
						closed_at TIMESTAMPTZ,
						min_participants INTEGER NOT NULL,
						result TEXT
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_model_id ON rounds(model_id, number DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_status ON rounds(status)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_rounds_open_per_model ON rounds(model_id)
						WHERE status IN ('pending', 'active', 'aggregating')`,
					`CREATE TABLE IF NOT EXISTS contributions (
						id VARCHAR(36) PRIMARY KEY,
						round_id VARCHAR(36) NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
						participant_id VARCHAR(255) NOT NULL,
						delta TEXT NOT NULL,
						delta_cid VARCHAR(128),
						accuracy DOUBLE PRECISION NOT NULL,
						loss DOUBLE PRECISION NOT NULL,
						samples_trained BIGINT NOT NULL,
						proof TEXT NOT NULL,
						submitted_at TIMESTAMPTZ NOT NULL,
						suspicious BOOLEAN NOT NULL DEFAULT FALSE,
						suspicion_reasons TEXT,
						UNIQUE (round_id, participant_id)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_contributions_round_id ON contributions(round_id, submitted_at)`,
					`CREATE TABLE IF NOT EXISTS participants (
						wallet_id VARCHAR(255) PRIMARY KEY,
						display_name VARCHAR(255) NOT NULL,
						active BOOLEAN NOT NULL DEFAULT TRUE,
						contributions BIGINT NOT NULL DEFAULT 0,
						reputation DOUBLE PRECISION NOT NULL DEFAULT 1,
						registered_at TIMESTAMPTZ NOT NULL,
						updated_at TIMESTAMPTZ NOT NULL
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS participants`,
					`DROP TABLE IF EXISTS contributions`,
					`DROP TABLE IF EXISTS rounds`,
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

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
