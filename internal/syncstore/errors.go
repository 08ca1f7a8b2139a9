package syncstore

import "errors"

var (
	ErrInvalidScope     = errors.New("invalid scope")
	ErrInvalidPatch     = errors.New("invalid patch")
	ErrPermissionDenied = errors.New("permission denied")
	ErrLocalPersistence = errors.New("local persistence failed")
	ErrNotConfirmed     = errors.New("delete requires confirmation")
	ErrWriteRejected    = errors.New("write rejected by remote store")
	ErrUnknownWrite     = errors.New("unknown write")
	ErrNotFound         = errors.New("document not found")
	ErrUnavailable      = errors.New("document not available offline")
	ErrClosed           = errors.New("store closed")
)
