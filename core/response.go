package core

import "net/http"

// Response renders itself to an http.ResponseWriter.
// Implementations set headers, the status code and write the body.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty creates an empty response with status 204 (No Content), e.g. for
// a successful DELETE.
func Empty() Response {
	return emptyResponse{status: http.StatusNoContent}
}

// EmptyWithStatus creates an empty response with a custom status code.
func EmptyWithStatus(status int) Response {
	return emptyResponse{status: status}
}
