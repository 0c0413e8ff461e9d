package fl

import "errors"

var (
	ErrOverflow         = errors.New("sample count overflow during aggregation")
	ErrUnknownStrategy  = errors.New("unknown aggregation strategy")
	ErrInvalidTolerance = errors.New("byzantine tolerance must not be negative")
)
