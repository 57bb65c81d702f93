package middleware

import (
	"context"
	"net/http"

	nanoid "github.com/matoous/go-nanoid/v2"
)

type callIDKey struct{}

// CallID assigns a correlation ID to every request -- the client-supplied
// X-Call-ID header when present, otherwise a generated one -- and echoes it
// on the response (section 6). Handlers read it via CallIDFromContext to
// stamp the AuthAttempt.call_id field.
func CallID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Call-ID")
		if id == "" {
			generated, err := nanoid.New(16)
			if err != nil {
				generated = "unknown"
			}
			id = "call_" + generated
		}

		w.Header().Set("X-Call-ID", id)
		ctx := context.WithValue(r.Context(), callIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallIDFromContext returns the request's correlation ID, or "" if CallID
// never ran.
func CallIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}
