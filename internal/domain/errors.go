package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "fetch_rates", "post")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// OpError ties a ledger failure to the operation that produced it.
type OpError struct {
	Op  string // "swap", "addLiquidity", ...
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err with op. A nil err stays nil.
func NewOpError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// Ledger error taxonomy. Every one of these is terminal for the invoking operation.
var (
	ErrInvalidAsset          = errors.New("invalid asset identifier")
	ErrInvalidAmount         = errors.New("amount must be a positive integer")
	ErrNotActive             = errors.New("contract is not active")
	ErrUnauthorized          = errors.New("caller is not the owner")
	ErrRateNotSet            = errors.New("exchange rate not set")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientShare     = errors.New("insufficient liquidity share")

	// ErrInvalidState rejects values outside the three operational states.
	ErrInvalidState = errors.New("invalid operational state")
)

var (
	// ErrTransferFailed is returned when the transfer executor could not move funds.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrInsufficientFunds is returned by the bank when the sender balance is too low.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAmountOverflow is returned when a balance would exceed 256 bits.
	ErrAmountOverflow = errors.New("amount overflow")

	// ErrUnknownCommand is returned by the sequencer for unsupported commands.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidAsset, "InvalidAsset"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrNotActive, "NotActive"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrRateNotSet, "RateNotSet"},
	{ErrInsufficientLiquidity, "InsufficientLiquidity"},
	{ErrInsufficientShare, "InsufficientShare"},
	{ErrInvalidState, "InvalidState"},
	{ErrNoCaller, "Unauthenticated"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrUnknownCommand, "UnknownCommand"},
}

// ErrorCode maps err onto its taxonomy name. Unknown errors are "Internal".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "Internal"
}
