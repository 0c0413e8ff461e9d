package storage

import (
	"fmt"
	"io"

	"github.com/absmach/fedledger/pkg/storage/badger"
	"github.com/absmach/fedledger/pkg/storage/postgres"
	"github.com/absmach/fedledger/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"FEDLEDGER_STORAGE_TYPE" envDefault:"memory"`

	PostgresHost    string `env:"FEDLEDGER_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"FEDLEDGER_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"FEDLEDGER_POSTGRES_USER"    envDefault:"fedledger"`
	PostgresPass    string `env:"FEDLEDGER_POSTGRES_PASS"    envDefault:"fedledger"`
	PostgresDB      string `env:"FEDLEDGER_POSTGRES_DB"      envDefault:"fedledger"`
	PostgresSSLMode string `env:"FEDLEDGER_POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"FEDLEDGER_SQLITE_PATH" envDefault:"./fedledger.db"`

	BadgerPath string `env:"FEDLEDGER_BADGER_PATH" envDefault:"./data/badger"`
}

type Repositories struct {
	Models        ModelRepository
	Rounds        RoundRepository
	Contributions ContributionRepository
	Participants  ParticipantRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "postgres":
		return newPostgresRepositories(cfg)
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "memory":
		return NewMemoryRepositories(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newPostgresRepositories(cfg Config) (*Repositories, error) {
	db, err := postgres.NewDatabase(
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresUser,
		cfg.PostgresPass,
		cfg.PostgresDB,
		cfg.PostgresSSLMode,
	)
	if err != nil {
		return nil, err
	}

	repos := postgres.NewRepositories(db)

	return &Repositories{
		Models:        repos.Models,
		Rounds:        repos.Rounds,
		Contributions: repos.Contributions,
		Participants:  repos.Participants,
		Closer:        db,
	}, nil
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	repos := sqlite.NewRepositories(db)

	return &Repositories{
		Models:        repos.Models,
		Rounds:        repos.Rounds,
		Contributions: repos.Contributions,
		Participants:  repos.Participants,
		Closer:        db,
	}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	repos := badger.NewRepositories(db)

	return &Repositories{
		Models:        repos.Models,
		Rounds:        repos.Rounds,
		Contributions: repos.Contributions,
		Participants:  repos.Participants,
		Closer:        db,
	}, nil
}

func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Models:        newMemoryModelRepository(NewInMemoryStorage()),
		Rounds:        newMemoryRoundRepository(NewInMemoryStorage()),
		Contributions: newMemoryContributionRepository(NewInMemoryStorage()),
		Participants:  newMemoryParticipantRepository(NewInMemoryStorage()),
	}
}
