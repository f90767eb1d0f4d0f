package errors

// ExitCodeError is an error that tells a binary how to exit.
type ExitCodeError struct {
	code ExitCode
	error
}

func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

// ExitCodeOf returns the exit code carried by err: 0 for nil and GenericFailureExitCode
// for errors that don't carry one.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return 0
	}
	if e, ok := err.(*ExitCodeError); ok {
		return e.code
	}
	return GenericFailureExitCode
}
