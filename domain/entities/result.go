package entities

// ResultStatus represents the outcome status of an SDK operation.
type ResultStatus string

const (
	// ResultStatusSuccess indicates the operation completed successfully.
	ResultStatusSuccess ResultStatus = "success"

	// ResultStatusError indicates an error occurred during the operation.
	ResultStatusError ResultStatus = "error"
)

// Result represents the outcome of an SDK operation, such as plugin
// initialization. It is either a success marker with an optional message, or
// an error marker carrying structured error details. Results are constructed
// by plugins and interpreted by the SDK.
type Result struct {
	// Error contains structured error information if Status is Error.
	Error *ErrorDetail `json:"error,omitempty"`

	// Status indicates whether the operation succeeded or errored.
	Status ResultStatus `json:"status"`

	// Message provides a human-readable description of the result.
	Message string `json:"message,omitempty"`
}

// ResultSuccess creates a successful Result with an optional message.
func ResultSuccess(message string) Result {
	return Result{
		Status:  ResultStatusSuccess,
		Message: message,
	}
}

// ResultError creates an error Result with the given error details.
func ResultError(err *ErrorDetail) Result {
	return Result{
		Status:  ResultStatusError,
		Message: err.Message,
		Error:   err,
	}
}

// IsSuccess returns true if the result indicates success.
func (r Result) IsSuccess() bool {
	return r.Status == ResultStatusSuccess
}

// IsError returns true if the result indicates an error.
func (r Result) IsError() bool {
	return r.Status == ResultStatusError
}
