package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

// Category groups error codes by how callers are expected to react.
type Category string

const (
	CategoryUnknown       Category = "unknown"
	CategoryValidation    Category = "validation"
	CategoryConfiguration Category = "configuration"
	CategoryDataIntegrity Category = "data_integrity"
	CategoryExternalIO    Category = "external_io"
	CategoryLifecycle     Category = "lifecycle"
)

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter ErrorCode = 100
	ErrCodeInvalidTrade     ErrorCode = 101
	ErrCodeInvalidOrder     ErrorCode = 102
	ErrCodeInvalidRule      ErrorCode = 103
	ErrCodeMissingParameter ErrorCode = 104

	// Configuration errors (200-299)
	ErrCodeInvalidConfiguration ErrorCode = 200
	ErrCodeUnknownPropFirm      ErrorCode = 201
	ErrCodeInvalidAccount       ErrorCode = 202
	ErrCodeUnsupportedProvider  ErrorCode = 203
	ErrCodeUnsupportedStorage   ErrorCode = 204
	ErrCodeVersionMismatch      ErrorCode = 205

	// Data integrity errors (300-399)
	ErrCodeNegativeQuantity ErrorCode = 300
	ErrCodeMissingQuantity  ErrorCode = 301
	ErrCodeInvalidPnLInput  ErrorCode = 302

	// Storage errors (400-499)
	ErrCodeStorageFailed  ErrorCode = 400
	ErrCodeMigrateFailed  ErrorCode = 401
	ErrCodeRecordNotFound ErrorCode = 402

	// Market data errors (500-599)
	ErrCodePriceFetchFailed   ErrorCode = 500
	ErrCodeCurrentPriceFailed ErrorCode = 501
	ErrCodeRateLimited        ErrorCode = 502
	ErrCodeStreamFailed       ErrorCode = 503

	// Settlement errors (600-699)
	ErrCodeEngineNotInitialized ErrorCode = 600
	ErrCodeTradeTerminal        ErrorCode = 601
	ErrCodeMachineStale         ErrorCode = 602
)

// Category maps the code range to its taxonomy category.
func (c ErrorCode) Category() Category {
	switch {
	case c >= 100 && c < 200:
		return CategoryValidation
	case c >= 200 && c < 300:
		return CategoryConfiguration
	case c >= 300 && c < 400:
		return CategoryDataIntegrity
	case c >= 400 && c < 600:
		return CategoryExternalIO
	case c >= 600 && c < 700:
		return CategoryLifecycle
	default:
		return CategoryUnknown
	}
}
