package domain

import "errors"

var (
	ErrFetchFailure      = errors.New("fetch scheduled events failed")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrMalformedDocument = errors.New("malformed document")
	ErrDateFormat        = errors.New("invalid date format")
	ErrWriteConflict     = errors.New("document changed since read")
)
