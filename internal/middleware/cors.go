package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows credentials when explicit origins are configured, since the
// refresh secret travels as a cookie. A wildcard origin cannot carry it.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	credentials := true
	for _, origin := range origins {
		if origin == "*" {
			credentials = false
			break
		}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		MaxAge:           3600,
		AllowCredentials: credentials,
	})

	return handler.Handler
}
