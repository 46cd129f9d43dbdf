package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidInstrument    ErrorCode = 102
	ErrCodeInvalidOrder         ErrorCode = 103
	ErrCodeInvalidTickSize      ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeInvalidVersion       ErrorCode = 106
	ErrCodeInvalidTimezone      ErrorCode = 107
	ErrCodeInsufficientData     ErrorCode = 108

	// Connectivity errors (200-299)
	ErrCodeConnectionFailed    ErrorCode = 200
	ErrCodeConnectionTimeout   ErrorCode = 201
	ErrCodeClientIDInUse       ErrorCode = 202
	ErrCodeNotConnected        ErrorCode = 203
	ErrCodeQualificationFailed ErrorCode = 204
	ErrCodeRegistryExhausted   ErrorCode = 205

	// Market data errors (300-399)
	ErrCodeQuoteUnavailable     ErrorCode = 300
	ErrCodeHistoricalDataFailed ErrorCode = 301
	ErrCodeStreamFailed         ErrorCode = 302

	// Strategy errors (400-499)
	ErrCodeUnsupportedStrategy  ErrorCode = 400
	ErrCodeStrategyRuntimeError ErrorCode = 401

	// Order and bracket errors (500-599)
	ErrCodeOrderFailed        ErrorCode = 500
	ErrCodeOrderNotFound      ErrorCode = 501
	ErrCodeCancelFailed       ErrorCode = 502
	ErrCodeMissingOrderID     ErrorCode = 503
	ErrCodeBracketUnlinked    ErrorCode = 504
	ErrCodeBracketUnconfirmed ErrorCode = 505
	ErrCodePositionNotFound   ErrorCode = 506

	// Scheduler errors (600-699)
	ErrCodeCycleFailed    ErrorCode = 600
	ErrCodeShutdownFailed ErrorCode = 601

	// Telemetry errors (700-799)
	ErrCodeTelemetryFailed ErrorCode = 700

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)
