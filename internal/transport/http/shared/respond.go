// Package shared centralizes JSON response and error translation for the
// HTTP handlers.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "platewatch/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the wire error shape. The
// message exposed is the domain error's own message; wrapped causes stay in
// the logs only.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal error"
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		message = dErr.Message
	}
	WriteJSON(w, dErrors.HTTPStatus(code), map[string]string{"error": message})
}
