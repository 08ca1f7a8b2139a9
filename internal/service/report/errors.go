package report

import "errors"

var (
	ErrNoRecords      = errors.New("no patients registered in the selected range")
	ErrClinicRequired = errors.New("an active clinic is required")
	ErrNoRecipients   = errors.New("no report recipients")
	ErrEmailDisabled  = errors.New("email delivery is disabled")
)
