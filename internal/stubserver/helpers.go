package stubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// respondWithError sends the {status:"error", error} envelope the client decodes.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"status": "error", "error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("stub: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("stub: failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) []string {
	details := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("Field '%s' is required", fe.Field()))
		case "email":
			details = append(details, fmt.Sprintf("Field '%s' must be a valid email address", fe.Field()))
		case "min", "gt":
			details = append(details, fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param()))
		default:
			details = append(details, fmt.Sprintf("Field '%s' failed on '%s'", fe.Field(), fe.Tag()))
		}
	}
	return details
}

// loadSession attaches the account behind a live session cookie to the request context.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.FromString(cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		s.mu.Lock()
		sess, ok := s.sessions[id]
		var acc account
		if ok && sess.expiresAt.After(s.now()) {
			acc, ok = s.accounts[sess.username]
		} else {
			ok = false
		}
		s.mu.Unlock()

		if ok {
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, acc))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}
