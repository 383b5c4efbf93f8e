package db

import "fmt"

// ExitError - a request to terminate the process, carried as an error so it
// can travel out of a transaction body. Atomic settles the transaction
// first (rollback for a non-zero code, commit for zero) and only then
// returns the ExitError, so a caller that sees one knows the data fate is
// already resolved and can os.Exit with the carried code.
type ExitError struct {
	Code int
}

// NewExitError - ExitError constructor.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// Error - return the error string.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit requested with code %d", e.Code)
}
