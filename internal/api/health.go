package api

import "net/http"

// Health serves `GET /healthz`: a trivial liveness probe that never touches
// the session caches or artifact store.
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
