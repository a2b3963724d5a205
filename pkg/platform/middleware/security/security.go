// Package security sets the browser hardening headers carried by every response.
package security

import "net/http"

// DefaultContentSecurityPolicy is sent outside debug mode.
const DefaultContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
	"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
	"img-src 'self' data: https:; " +
	"font-src 'self' https://cdn.jsdelivr.net; " +
	"connect-src 'self'; " +
	"frame-ancestors 'none';"

var baseHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"X-XSS-Protection":       "1; mode=block",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
	"Permissions-Policy":     "geolocation=(), microphone=(), camera=()",
}

// Headers sets the security headers before the handler runs so that success
// and error responses alike carry them. In debug mode no CSP is sent.
func Headers(debug bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range baseHeaders {
				h.Set(k, v)
			}
			if !debug {
				h.Set("Content-Security-Policy", DefaultContentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
