package errmsg

import (
	"errors"
	"net/http"

	"github.com/andymarkow/accountmart/internal/market"
)

type HTTPError struct {
	Code    int
	Message error
}

func NewHTTPError(code int, message error) HTTPError {
	return HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message.Error()
}

var (
	ErrRequestPayloadEmpty = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is empty"),
	)

	ErrRequestPayloadInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is invalid"),
	)

	ErrAmountNotWhole = NewHTTPError(
		http.StatusBadRequest,
		errors.New("amount must be a whole number of units"),
	)

	ErrTokenInvalid = NewHTTPError(
		http.StatusUnauthorized,
		errors.New("token is invalid"),
	)
)

var (
	ErrCredentialsUnavailable = NewHTTPError(
		http.StatusNotFound,
		errors.New("account credentials not available"),
	)
)

// kindCodes is checked in order. Errors carrying several kinds report the
// first one listed.
var kindCodes = []struct {
	kind error
	code int
}{
	{market.ErrUnauthenticated, http.StatusUnauthorized},
	{market.ErrUnauthorized, http.StatusForbidden},
	{market.ErrNotFound, http.StatusNotFound},
	{market.ErrInsufficientBalance, http.StatusPaymentRequired},
	{market.ErrInvalidState, http.StatusConflict},
	{market.ErrAlreadyProcessed, http.StatusConflict},
	{market.ErrConflict, http.StatusConflict},
	{market.ErrInvalidArgument, http.StatusBadRequest},
}

// FromError maps an engine error onto its HTTP response. Unknown errors are
// internal server errors.
func FromError(err error) HTTPError {
	for _, kc := range kindCodes {
		if errors.Is(err, kc.kind) {
			return NewHTTPError(kc.code, err)
		}
	}

	return NewHTTPError(http.StatusInternalServerError, err)
}
