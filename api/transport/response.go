package transport

import (
	"encoding/json"

	"github.com/fastygo/taskboard/domain"
)

// Envelope wraps every REST response, success or error.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// ErrorBody carries the message of a failed request and, for validation
// failures, the offending fields.
type ErrorBody struct {
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code, message string, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  &ErrorBody{Message: message},
		Meta:   meta,
	}
}

// NewValidationError reports every field that failed validation.
func NewValidationError(err *domain.ValidationError) Envelope {
	return Envelope{
		Status: "error",
		Code:   string(domain.ErrCodeInvalid),
		Error: &ErrorBody{
			Message: "validation failed",
			Fields:  append([]domain.FieldError(nil), err.Fields...),
		},
	}
}

// String returns the JSON form for logging and for raw fasthttp bodies.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
