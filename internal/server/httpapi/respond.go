package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorPermission):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorDuplicateName),
		errors.Is(err, common.ErrorConflict),
		errors.Is(err, common.ErrorValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrorInvalidOperation):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error()}

	var fe *common.FieldError
	if errors.As(err, &fe) {
		body = errorBody{Error: fe.Message, Field: fe.Field}
	}
	if code == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path, "request_id", requestID(r.Context()))
		body = errorBody{Error: common.ErrorInternal.Error()}
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decode reads a JSON request body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "malformed JSON body"
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			msg = err.Error()[len("json: "):]
		}
		return common.Validation("body", msg)
	}
	return nil
}

// flexString accepts a JSON string or number, so amounts may be sent either
// way without going through float64.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
