// Package shared holds the response helpers every handler uses.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "idvgate/pkg/domain-errors"
	"idvgate/pkg/requestcontext"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	TraceID     string `json:"traceId,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Internal
// details never leak: unknown errors become a generic internal_error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Code:    string(dErrors.CodeInternal),
		Message: "internal error",
		TraceID: requestcontext.RequestID(r.Context()),
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		resp.Code = string(de.Code)
		resp.Message = de.Message
		resp.Description = de.Description
	}
	WriteJSON(w, dErrors.HTTPStatus(dErrors.Code(resp.Code)), resp)
}
