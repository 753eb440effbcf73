package clientip

// Config lists the proxy headers trusted for the client IP. Empty by default,
// so only RemoteAddr is used; set it only to headers your edge proxy
// overwrites.
type Config struct {
	TrustedHeaders []string `env:"CLIENTIP_TRUSTED_HEADERS" envSeparator:","`
}

// Resolver builds the resolver described by c.
func (c Config) Resolver() *Resolver {
	return NewResolver(c.TrustedHeaders...)
}
