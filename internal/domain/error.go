package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyExists    = errors.New("entity already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyProcessed = errors.New("payment already processed")
	ErrForbidden        = errors.New("forbidden")

	// Payment flow errors
	ErrUnavailable   = errors.New("service temporarily unavailable")
	ErrGateway       = errors.New("payment gateway error")
	ErrUnverifiable  = errors.New("payment could not be verified")
	ErrCouponInvalid = errors.New("coupon is not valid")

	// Persistence errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")

	ErrLockNotAcquired = errors.New("lock not acquired")
)

// Error classifies a failure under one of the sentinels above and carries a
// message that is safe to show to members.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// E builds a classified error with a public message.
func E(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap is E with an underlying cause.
func Wrap(kind error, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// PublicMessage returns the member-facing text of err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrUnavailable):
		return "Database connection timeout. Please try again in a moment."
	case errors.Is(err, ErrAlreadyProcessed):
		return "Payment already completed"
	default:
		return "Internal server error"
	}
}
