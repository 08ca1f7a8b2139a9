package document

import "errors"

var ErrNotPrintable = errors.New("clinical event type has no printable layout")
