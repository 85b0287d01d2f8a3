package api //nolint:revive // package name is intentional

import (
	"net/http"

	memerrors "github.com/thotran113254/mem0-rest/pkg/errors"
)

// ErrorResponse is the failure body for every route. message mirrors the
// single-field body older clients read; error, error_type and error_details
// carry the classified failure.
type ErrorResponse struct {
	Message      string `json:"message"`
	Error        string `json:"error"`
	ErrorType    string `json:"error_type"`
	ErrorDetails string `json:"error_details,omitempty"`
	Retryable    bool   `json:"retryable"`
}

const internalErrorMessage = "internal error"

// errorResponse converts err into a status and body. Foreign errors never
// expose their text. In compatibility mode every failure is a 400.
func (h *Handler) errorResponse(err error) (int, ErrorResponse) {
	me, ok := memerrors.As(err)
	if !ok {
		me = &memerrors.MemoryError{Kind: memerrors.KindInternal, Message: internalErrorMessage}
	}

	resp := ErrorResponse{
		Message:   me.Message,
		Error:     me.Message,
		ErrorType: string(me.Kind),
		Retryable: me.Retryable,
	}
	if me.Detail != "" {
		resp.ErrorDetails = h.redactor.Redact(me.Detail)
		resp.Error = me.Message + ": " + resp.ErrorDetails
	}

	status := http.StatusBadRequest
	if h.strictStatus {
		status = me.HTTPStatusCode()
	}
	return status, resp
}
