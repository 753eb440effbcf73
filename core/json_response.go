package core

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// JSONResponse is the standard JSON response structure
type JSONResponse struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON creates a 200 JSON response
func JSON(code string, data any, meta map[string]any) Response {
	return JSONWithStatus(http.StatusOK, code, data, meta)
}

// JSONWithStatus creates a JSON response with a custom status code.
func JSONWithStatus(status int, code string, data any, meta map[string]any) Response {
	return jsonResponse{
		status: status,
		body: JSONResponse{
			Code: code,
			Data: data,
			Meta: meta,
		},
	}
}

// JSONError creates a JSON error response from an error.
//
// Validation errors become 422 with per-field details. Errors known to
// AsHTTPError keep their message when they wrap more context than the
// bare key; unknown errors are reported as 500 without leaking the cause.
func JSONError(err error) Response {
	if err == nil {
		err = ErrInternalServerError
	}

	var valErr ValidationError
	if errors.As(err, &valErr) {
		detail := &ErrorDetail{Code: "validation_error", Message: err.Error()}
		if len(valErr) > 0 {
			detail.Details = make(map[string][]string, len(valErr))
			maps.Copy(detail.Details, valErr)
		}
		return jsonResponse{
			status: http.StatusUnprocessableEntity,
			body:   JSONResponse{Code: detail.Code, Error: detail},
		}
	}

	httpErr, known := AsHTTPError(err)
	message := http.StatusText(httpErr.Code)
	if known && err.Error() != httpErr.Key {
		message = err.Error()
	}

	return jsonResponse{
		status: httpErr.Code,
		body: JSONResponse{
			Code:  httpErr.Key,
			Error: &ErrorDetail{Code: httpErr.Key, Message: message},
		},
	}
}
