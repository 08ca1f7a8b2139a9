package record

import "errors"

var (
	ErrEventNotFound   = errors.New("clinical event not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrTypeChanged     = errors.New("the type of a clinical event cannot change")
	ErrClinicRequired  = errors.New("an active clinic is required")
)
