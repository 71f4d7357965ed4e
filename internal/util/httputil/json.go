package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// WriteJSON marshals v before touching w, so an encoding failure can still be reported as a
// proper error response.
func WriteJSON(w http.ResponseWriter, code int, v any) error {
	var b bytes.Buffer
	if err := json.NewEncoder(&b).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(b.Bytes()); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
