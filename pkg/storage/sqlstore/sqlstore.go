// Package sqlstore holds the SQL repositories shared by the sqlite and
// postgres backends. Queries are written with '?' placeholders and rebound
// for the driver in use.
package sqlstore

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrDBQuery = errors.New("database query error")
	ErrCreate  = errors.New("create error")
	ErrUpdate  = errors.New("update error")
	ErrEncode  = errors.New("encode error")
	ErrDecode  = errors.New("decode error")
)

// Dialect carries the driver specific bits the shared queries need.
type Dialect struct {
	IsUniqueViolation func(error) bool
}

type Repositories struct {
	Models        *ModelRepository
	Rounds        *RoundRepository
	Contributions *ContributionRepository
	Participants  *ParticipantRepository
}

func NewRepositories(db *sqlx.DB, d Dialect) Repositories {
	if d.IsUniqueViolation == nil {
		d.IsUniqueViolation = func(error) bool { return false }
	}

	return Repositories{
		Models:        &ModelRepository{db: db, dialect: d},
		Rounds:        &RoundRepository{db: db, dialect: d},
		Contributions: &ContributionRepository{db: db, dialect: d},
		Participants:  &ParticipantRepository{db: db, dialect: d},
	}
}

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Join(ErrEncode, err)
	}

	return string(b), nil
}

func jsonDecode(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return errors.Join(ErrDecode, err)
	}

	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

func fromNullTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}

	return t.UTC()
}

// pageLimit maps the zero limit, which callers use for "everything", onto a
// bound both drivers accept.
func pageLimit(limit uint64) uint64 {
	if limit == 0 || limit > math.MaxInt64 {
		return math.MaxInt64
	}

	return limit
}
