package migration

import "errors"

var (
	ErrForbidden      = errors.New("import is restricted to administrators")
	ErrInvalidMode    = errors.New("invalid import mode")
	ErrNotArray       = errors.New("import data must be a JSON array of objects")
	ErrClinicRequired = errors.New("an active clinic configured for the account is required")
)
