package http

import (
	"context"
	"errors"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrTransactionNotFound):
		return http.StatusNotFound
	case core.IsUserError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorType classifies err for the error_type log field.
func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrTransactionNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrDuplicateName),
		errors.Is(err, core.ErrProtected),
		errors.Is(err, core.ErrAlreadyArchived),
		errors.Is(err, core.ErrNotArchived),
		errors.Is(err, core.ErrHasTransactions),
		errors.Is(err, core.ErrAccountArchived):
		return log.ErrorTypeConflict
	case core.IsUserError(err):
		return log.ErrorTypeValidation
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	default:
		return log.ErrorTypeInternal
	}
}

// writeError logs err and answers with an HTML error fragment. Server errors
// never leak their message to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	writeErrorFrom(w, r, err, log.ComponentHTTP, op)
}

func writeErrorFrom(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithErrorType(errorType(err))

	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, component, op, fields)
		message = "internal error"
	} else {
		fields.WithOperation(op).WithError(err)
		fields[log.FieldStatusCode] = status
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}

	ErrorResponse(status, message).Write(w)
}

func notFound(w http.ResponseWriter, r *http.Request, op string) {
	writeError(w, r, core.ErrNotFound, op)
}

// redirect answers a form post with 303 See Other.
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}
