// Package clientip resolves the originating client's IP address from an
// *http.Request when the service runs behind one or more reverse proxies.
//
// A Resolver walks an ordered list of trusted headers and returns the first
// valid address, falling back to RemoteAddr. GetIP and Middleware use
// DefaultHeaders (X-Forwarded-For, then X-Real-IP), which any client can
// set; services build their resolver from Config instead, whose
// CLIENTIP_TRUSTED_HEADERS list is empty unless an edge proxy overwrites
// those headers. The resolved address is the default rate limiting key for
// admission control.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Use(clientip.MiddlewareWith(clientip.NewResolver("CF-Connecting-IP", "X-Forwarded-For")))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		ip := clientip.GetIPFromContext(r.Context())
//		_ = ip
//	}
//
// LoggerExtractor plugs into logger.WithContextExtractors so every request
// scoped log line carries client_ip.
package clientip
