// Package middleware provides HTTP middleware for the fitcoach API.
package middleware

import (
	"net/http"
	"strings"
)

// DefaultAllowedHeaders are the request headers browser clients send to the chat function.
var DefaultAllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// CORS returns middleware that handles CORS headers.
// A "*" entry in allowedOrigins is answered with a literal wildcard.
func CORS(allowedOrigins, allowedHeaders []string) func(http.Handler) http.Handler {
	if len(allowedHeaders) == 0 {
		allowedHeaders = DefaultAllowedHeaders
	}
	headers := strings.Join(allowedHeaders, ", ")

	wildcard := false
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
			break
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowOrigin := ""
			if wildcard {
				allowOrigin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == origin {
						allowOrigin = origin
						break
					}
				}
			}

			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", headers)
				if allowOrigin != "*" {
					w.Header().Add("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
