package hits

import "errors"

// Validation error codes returned to the tracker.
const (
	CodeInvalidPagePath        = "invalid_page_path"
	CodeInvalidDeviceClass     = "invalid_device_class"
	CodeInvalidTimestampBucket = "invalid_timestamp_bucket"
	CodeInvalidRequest         = "invalid_request"
)

// ValidationError is a malformed or missing hit field.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrInvalidPagePath        = &ValidationError{Code: CodeInvalidPagePath, Message: "Invalid page path."}
	ErrInvalidDeviceClass     = &ValidationError{Code: CodeInvalidDeviceClass, Message: "Invalid device class."}
	ErrInvalidTimestampBucket = &ValidationError{Code: CodeInvalidTimestampBucket, Message: "Invalid timestamp bucket."}
	ErrInvalidRequest         = &ValidationError{Code: CodeInvalidRequest, Message: "Invalid request body."}
)

// AsValidationError unwraps err into a ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
