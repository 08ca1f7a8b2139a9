package clinical

import "errors"

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("invalid date range")
)
