// Package cron parses the schedules that drive automatic round opening.
package cron

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidExpression = errors.New("invalid cron expression")

// Schedule wraps a parsed five-field expression or a descriptor such as
// "@hourly" or "@every 15m".
type Schedule struct {
	expr  string
	sched cron.Schedule
	loc   *time.Location
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse reads expr in the given IANA timezone. An empty timezone means UTC.
func Parse(expr, timezone string) (*Schedule, error) {
	if expr == "" {
		return nil, ErrInvalidExpression
	}

	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}

	loc := time.UTC
	if timezone != "" {
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
		}
	}

	return &Schedule{expr: expr, sched: sched, loc: loc}, nil
}

// Next returns the first activation strictly after from.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.sched.Next(from.In(s.loc))
}

func (s *Schedule) String() string {
	return s.expr
}
