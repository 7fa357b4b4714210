package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
)

const adminTokenHeader = "X-Admin-Token"

// adminOnly guards operator routes with a shared token. An empty
// configured token disables admin access entirely rather than leaving
// the routes open.
func (s *Server) adminOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(adminTokenHeader)
		if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			log.Warn().
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Msg("Rejected admin request")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "invalid admin token"})
			return
		}
		next(w, r)
	})
}
