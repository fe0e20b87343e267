package httpapi

import (
	"net/http"

	"github.com/nexuschat/server/internal/pool"
)

// WithCORS adds the permissive CORS headers the browser client expects and
// short-circuits preflight requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WithPool runs each request inside a worker pool task, bounding concurrent
// request handling by the pool's workers and queue. When the queue is full
// the request is rejected immediately with 503 instead of waiting.
func WithPool(p *pool.Pool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := make(chan struct{})

		err := p.Submit(func() {
			defer close(done)
			next.ServeHTTP(w, r)
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Server busy, try again later")
			return
		}

		<-done
	})
}
