package patient

import (
	"errors"
	"fmt"

	"github.com/Alijeyrad/consultorio_backend/internal/schema"
)

var (
	ErrPatientNotFound   = errors.New("patient not found")
	ErrNameRequired      = errors.New("patient name is required")
	ErrClinicRequired    = errors.New("an active clinic is required")
	ErrUnknownClinic     = errors.New("clinic is not configured for this account")
	ErrInvalidBirthDate  = errors.New("invalid birth date")
	ErrPossibleDuplicate = errors.New("a patient with a similar name already exists")
)

// DuplicateError carries the existing patient that looks like the one being
// created. It matches ErrPossibleDuplicate.
type DuplicateError struct {
	Match schema.Patient
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", ErrPossibleDuplicate, e.Match.Name, e.Match.BirthDate)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrPossibleDuplicate }
