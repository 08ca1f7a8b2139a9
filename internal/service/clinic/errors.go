package clinic

import "errors"

var (
	ErrUnknownClinic     = errors.New("clinic is not configured for this account")
	ErrInvalidDoctorName = errors.New("doctor name is required")
)
