package cli

// Process exit codes besides 0 (success) and 1 (error).
const (
	// ExitCodeFailedOutcomes reports a run in which the operation failed on some records.
	ExitCodeFailedOutcomes = 2
)

// ExitError carries a specific process exit code to main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
