package middleware

import (
	"log"
	"net/http"
)

// Recovery converts a panic anywhere downstream into a 500 response
// instead of taking the whole process down.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic recovered: path=%s err=%v", r.URL.Path, err)
				http.Error(w, `{"error":"internal_error","message":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
