package constants

// ErrorKind classifies a per-item failure in a verification run.
type ErrorKind string

const (
	KindExtraction     ErrorKind = "EXTRACTION_ERROR"
	KindTimeout        ErrorKind = "TIMEOUT_ERROR"
	KindCancelled      ErrorKind = "CANCELLED"
	KindInvalidRequest ErrorKind = "INVALID_REQUEST"
	KindInternal       ErrorKind = "INTERNAL_ERROR"
)
