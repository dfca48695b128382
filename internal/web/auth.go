package web

import (
	"net/http"
	"strings"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type userHandler func(w http.ResponseWriter, r *http.Request, email string)

// identify returns the caller's email from a bearer token, or "" when the
// request carries no Authorization header. A present but invalid token is an
// error.
func (s *Server) identify(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", domain.ErrUnauthorized
	}
	return s.accounts.Authenticate(strings.TrimSpace(token))
}

func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := s.identify(r)
		if err == nil && email == "" {
			err = domain.ErrUnauthorized
		}
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="bakutrack"`)
			s.writeError(w, r, err)
			return
		}
		next(w, r, email)
	}
}
