package apperr

import (
	"errors"
	"net/http"
)

// Sentinel errors. Use errors.Is to test for them; returned errors are
// usually wrapped with context.
var (
	ErrNotFound          = errors.New("mlbilling: not found")
	ErrInsufficientFunds = errors.New("mlbilling: insufficient funds")
	ErrInvalidModel      = errors.New("mlbilling: invalid model")
	ErrInferenceError    = errors.New("mlbilling: inference failed")
	ErrPersistence       = errors.New("mlbilling: persistence failure")
	ErrAccessDenied      = errors.New("mlbilling: access denied")

	ErrValidation     = errors.New("mlbilling: validation failed")
	ErrAlreadyExists  = errors.New("mlbilling: already exists")
	ErrAlreadyDeleted = errors.New("mlbilling: already deleted")
	ErrUnauthorized   = errors.New("mlbilling: unauthorized")
)

// Error tags a cause with one of the sentinel kinds above.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap returns err tagged with kind. Both errors.Is(result, kind) and
// errors.Is(result, err) hold. A nil err yields nil.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

var kinds = []error{
	ErrNotFound,
	ErrInsufficientFunds,
	ErrInvalidModel,
	ErrInferenceError,
	ErrPersistence,
	ErrAccessDenied,
	ErrValidation,
	ErrAlreadyExists,
	ErrAlreadyDeleted,
	ErrUnauthorized,
}

// KindOf returns the kind of the outermost *Error in err's chain. Without
// one it returns the first sentinel err matches, or nil.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsClientError reports whether err is caused by the request itself and
// must not be retried.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case ErrNotFound, ErrInsufficientFunds, ErrInvalidModel, ErrAccessDenied,
		ErrValidation, ErrAlreadyExists, ErrAlreadyDeleted, ErrUnauthorized:
		return true
	}
	return false
}

// HTTPStatus maps err to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case ErrInvalidModel, ErrValidation, ErrAlreadyDeleted:
		return http.StatusBadRequest
	case ErrAccessDenied:
		return http.StatusForbidden
	case ErrAlreadyExists:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
