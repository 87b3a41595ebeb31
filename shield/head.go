package shield

import "net/http"

// HeadToGet lets uptime checks send HEAD /health (and HEAD on any /api
// listing) against routes registered with r.Get(). The GET handler runs and
// net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
