package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/votecommit/log"
	"github.com/vocdoni/votecommit/types"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus is ignored.
//
// Example output: {"error":"election not found","code":40002}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{
			Err:  e.Err.Error(),
			Code: e.Code,
		})
}

// Error returns the message contained inside the Error.
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Write serializes the error as JSON with the HTTP status of e.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

// Withf returns a copy of Error with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// With returns a copy of Error with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of Error with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err.Error()),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// errorFrom maps an error returned by the core packages to its API error.
// Unknown errors are internal server errors.
func errorFrom(err error) Error {
	var apiErr Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, types.ErrNotFound):
		return ErrResourceNotFound.WithErr(err)
	case errors.Is(err, types.ErrDuplicateVote):
		return ErrAlreadyVoted.WithErr(err)
	case errors.Is(err, types.ErrDuplicateTag):
		return ErrDuplicateBallotTag.WithErr(err)
	case errors.Is(err, types.ErrAlreadyClosed):
		return ErrElectionClosed.WithErr(err)
	case errors.Is(err, types.ErrElectionNotActive):
		return ErrElectionNotAcceptingVotes.WithErr(err)
	case errors.Is(err, types.ErrMalformedProof):
		return ErrMalformedProof.WithErr(err)
	case errors.Is(err, types.ErrInvalidInput):
		return ErrInvalidInput.WithErr(err)
	case errors.Is(err, types.ErrLedger):
		return ErrLedgerUnavailable.WithErr(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
