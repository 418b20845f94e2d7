package errors

var (
	ErrUnknown            = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument    = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrNotFound           = New(ERR_NOT_FOUND, "not found")
	ErrProcessing         = New(ERR_PROCESSING, "error processing")
	ErrConfiguration      = New(ERR_CONFIGURATION, "configuration error")
	ErrContext            = New(ERR_CONTEXT, "context error")
	ErrContextCanceled    = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError              = New(ERR_ERROR, "generic error")
	ErrTimeout            = New(ERR_TIMEOUT, "timeout")
	ErrTxInvalid          = New(ERR_TX_INVALID, "tx invalid")
	ErrTxAlreadyExists    = New(ERR_TX_ALREADY_EXISTS, "tx already exists")
	ErrTxNotFound         = New(ERR_TX_NOT_FOUND, "tx not found")
	ErrTxConflict         = New(ERR_TX_CONFLICT, "tx already processed")
	ErrSpent              = New(ERR_SPENT, "utxo already spent")
	ErrInsufficientFunds  = New(ERR_INSUFFICIENT_FUNDS, "insufficient funds")
	ErrServiceUnavailable = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceError       = New(ERR_SERVICE_ERROR, "service error")
	ErrShardUnavailable   = New(ERR_SHARD_UNAVAILABLE, "shard unavailable")
	ErrCoordination       = New(ERR_COORDINATION, "coordination error")
	ErrInvariantViolation = New(ERR_INVARIANT_VIOLATION, "invariant violation")
)

// errors initialization functions

func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewTimeoutError(message string, params ...interface{}) error {
	return New(ERR_TIMEOUT, message, params...)
}
func NewTxInvalidError(message string, params ...interface{}) error {
	return New(ERR_TX_INVALID, message, params...)
}
func NewTxAlreadyExistsError(message string, params ...interface{}) error {
	return New(ERR_TX_ALREADY_EXISTS, message, params...)
}
func NewTxConflictError(message string, params ...interface{}) error {
	return New(ERR_TX_CONFLICT, message, params...)
}
func NewSpentError(message string, params ...interface{}) error {
	return New(ERR_SPENT, message, params...)
}
func NewInsufficientFundsError(message string, params ...interface{}) error {
	return New(ERR_INSUFFICIENT_FUNDS, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewShardUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SHARD_UNAVAILABLE, message, params...)
}
func NewCoordinationError(message string, params ...interface{}) error {
	return New(ERR_COORDINATION, message, params...)
}
func NewInvariantViolationError(message string, params ...interface{}) error {
	return New(ERR_INVARIANT_VIOLATION, message, params...)
}
