package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	Header            = "X-Request-ID"
	CorrelationHeader = "X-Correlation-ID"

	maxIDLength = 128
	idPattern   = "^[a-zA-Z0-9_-]+$"
)

var validIDRegex = regexp.MustCompile(idPattern)

// Middleware attaches a request ID and a correlation ID to every request.
// Valid client-supplied IDs are reused; anything else is replaced by a new
// UUID. Both IDs are echoed in the response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := idOrNew(r.Header.Get(Header))
		correlationID := idOrNew(r.Header.Get(CorrelationHeader))

		w.Header().Set(Header, requestID)
		w.Header().Set(CorrelationHeader, correlationID)

		ctx := WithContext(r.Context(), requestID)
		ctx = WithCorrelationID(ctx, correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func idOrNew(id string) string {
	if isValidRequestID(id) {
		return id
	}
	return uuid.NewString()
}

func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	return validIDRegex.MatchString(id)
}
