package action

// Status is the outcome classification of an executed action.
type Status string

const (
	// StatusSuccess indicates the action completed (or dry-ran) successfully.
	StatusSuccess Status = "success"
	// StatusFailure indicates the resource handler failed.
	StatusFailure Status = "failure"
	// StatusValidationFailed indicates the action was malformed and was never
	// handed to a resource handler.
	StatusValidationFailed Status = "validation-failed"
)

// Result is the normalized outcome of one action invocation. Handler-level
// faults never escape as raw errors; they are folded into a Result.
type Result struct {
	// Status classifies the outcome.
	Status Status `json:"status"`
	// CorrelationID echoes the originating action's correlation ID.
	CorrelationID string `json:"correlationId"`
	// Message is a human-readable summary of the outcome.
	Message string `json:"message,omitempty"`
	// Data carries handler output (read results, created resource, listing).
	Data map[string]interface{} `json:"data,omitempty"`
	// Validation carries field-level errors when Status is validation-failed.
	Validation *ValidationResult `json:"validation,omitempty"`
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// SuccessResult builds a success Result for the given action.
func SuccessResult(a *Action, message string, data map[string]interface{}) Result {
	return Result{
		Status:        StatusSuccess,
		CorrelationID: a.CorrelationID,
		Message:       message,
		Data:          data,
	}
}

// FailureResult builds a failure Result for the given action.
func FailureResult(a *Action, message string) Result {
	return Result{
		Status:        StatusFailure,
		CorrelationID: a.CorrelationID,
		Message:       message,
	}
}

// ValidationFailedResult builds a validation-failed Result carrying the
// field-level errors.
func ValidationFailedResult(a *Action, vr *ValidationResult) Result {
	return Result{
		Status:        StatusValidationFailed,
		CorrelationID: a.CorrelationID,
		Message:       "action validation failed",
		Validation:    vr,
	}
}

// FieldError is one field-level validation failure.
type FieldError struct {
	// Field names the offending request field.
	Field string `json:"field"`
	// Message explains the failure.
	Message string `json:"message"`
	// Code is an optional machine-readable error code.
	Code string `json:"code,omitempty"`
}

// ValidationResult collects errors, warnings, and informational notes from
// validating an action. Warnings and infos never affect validity.
type ValidationResult struct {
	// Errors are field-level failures; ordering follows discovery order.
	Errors []FieldError `json:"errors,omitempty"`
	// Warnings are advisory notes that do not block the action.
	Warnings []string `json:"warnings,omitempty"`
	// Infos are informational notes.
	Infos []string `json:"infos,omitempty"`
}

// Valid reports whether the result carries no errors.
func (v *ValidationResult) Valid() bool {
	return len(v.Errors) == 0
}

// AddError appends a field-level error.
func (v *ValidationResult) AddError(field, message, code string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message, Code: code})
}

// AddWarning appends an advisory warning.
func (v *ValidationResult) AddWarning(message string) {
	v.Warnings = append(v.Warnings, message)
}

// AddInfo appends an informational note.
func (v *ValidationResult) AddInfo(message string) {
	v.Infos = append(v.Infos, message)
}
