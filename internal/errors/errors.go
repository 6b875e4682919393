package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrPatientNotFound    = &AppError{Code: "PATIENT_001", Message: "patient not found"}
	ErrMedicationNotFound = &AppError{Code: "MED_001", Message: "medication not found"}

	ErrInvalidTimePeriod   = &AppError{Code: "VAL_001", Message: "invalid time period"}
	ErrInvalidMealRelation = &AppError{Code: "VAL_002", Message: "invalid meal relation"}
	ErrInvalidDrugType     = &AppError{Code: "VAL_003", Message: "invalid drug type"}
	ErrMissingFields       = &AppError{Code: "VAL_004", Message: "required fields missing"}

	ErrChannelNotConfigured = &AppError{Code: "CHAN_001", Message: "channel not configured"}
	ErrChannelUnavailable   = &AppError{Code: "CHAN_002", Message: "channel unavailable"}
	ErrNoRecipient          = &AppError{Code: "CHAN_003", Message: "no recipient on file"}

	ErrSchedulerRunning = &AppError{Code: "SCHED_001", Message: "scheduler already running"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
